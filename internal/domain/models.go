package domain

// Channel is one of the three outbound notification transports.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
)

// Audience says whether an event notifies everyone or one account.
type Audience string

const (
	AudienceBroadcast Audience = "broadcast"
	AudienceTargeted  Audience = "targeted-by-field"
)

// EventKind names a contract event the bridge understands.
type EventKind string

const (
	Fin4TokenCreated   EventKind = "Fin4TokenCreated"
	ClaimSubmitted     EventKind = "ClaimSubmitted"
	ClaimApproved      EventKind = "ClaimApproved"
	ClaimRejected      EventKind = "ClaimRejected"
	UpdatedTotalSupply EventKind = "UpdatedTotalSupply"
	VerifierPending    EventKind = "VerifierPending"
	VerifierApproved   EventKind = "VerifierApproved"
	VerifierRejected   EventKind = "VerifierRejected"
	NewMessage         EventKind = "NewMessage"
)

// Satellite contract names, as resolved from the main registry contract.
const (
	ContractTokenManagement = "Fin4TokenManagement"
	ContractClaiming        = "Fin4Claiming"
	ContractVerifying       = "Fin4Verifying"
	ContractMessaging       = "Fin4Messaging"
)

// EventDescriptor is the static per-kind routing configuration.
type EventDescriptor struct {
	Kind        EventKind
	Contract    string
	Audience    Audience
	TargetField string // set when Audience is AudienceTargeted
	Title       string
	Messaging   bool // promoted to chat/email; false means push-only
}

// Catalog is the full event table, loaded once at startup and immutable
// thereafter. Broadcast kinds are listed before targeted kinds because the
// chat "change" listing numbers them in this order.
var Catalog = []EventDescriptor{
	{Kind: Fin4TokenCreated, Contract: ContractTokenManagement, Audience: AudienceBroadcast, Title: "New token created", Messaging: true},
	{Kind: UpdatedTotalSupply, Contract: ContractClaiming, Audience: AudienceBroadcast, Title: "Total supply updated", Messaging: false},
	{Kind: ClaimSubmitted, Contract: ContractClaiming, Audience: AudienceTargeted, TargetField: "claimer", Title: "Claim submitted", Messaging: false},
	{Kind: ClaimApproved, Contract: ContractClaiming, Audience: AudienceTargeted, TargetField: "claimer", Title: "Claim approved", Messaging: true},
	{Kind: ClaimRejected, Contract: ContractClaiming, Audience: AudienceTargeted, TargetField: "claimer", Title: "Claim rejected", Messaging: true},
	{Kind: VerifierPending, Contract: ContractVerifying, Audience: AudienceTargeted, TargetField: "tokenAddrToReceiveVerifierNotice", Title: "Verifier approval pending", Messaging: true},
	{Kind: VerifierApproved, Contract: ContractVerifying, Audience: AudienceTargeted, TargetField: "tokenAddrToReceiveVerifierNotice", Title: "Verifier approved", Messaging: true},
	{Kind: VerifierRejected, Contract: ContractVerifying, Audience: AudienceTargeted, TargetField: "tokenAddrToReceiveVerifierNotice", Title: "Verifier rejected", Messaging: true},
	{Kind: NewMessage, Contract: ContractMessaging, Audience: AudienceTargeted, TargetField: "receiver", Title: "New message", Messaging: true},
}

var catalogByKind = func() map[EventKind]EventDescriptor {
	m := make(map[EventKind]EventDescriptor, len(Catalog))
	for _, d := range Catalog {
		m[d.Kind] = d
	}
	return m
}()

// DescriptorFor looks up the static descriptor for an event kind.
func DescriptorFor(kind EventKind) (EventDescriptor, bool) {
	d, ok := catalogByKind[kind]
	return d, ok
}

// Contracts returns the distinct contract names the catalog spans, in
// catalog order.
func Contracts() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range Catalog {
		if _, ok := seen[d.Contract]; !ok {
			seen[d.Contract] = struct{}{}
			out = append(out, d.Contract)
		}
	}
	return out
}

// MessagingCatalog returns the messaging-eligible kinds in listing order:
// broadcast kinds first, then targeted kinds.
func MessagingCatalog() []EventDescriptor {
	var broadcast, targeted []EventDescriptor
	for _, d := range Catalog {
		if !d.Messaging {
			continue
		}
		if d.Audience == AudienceBroadcast {
			broadcast = append(broadcast, d)
		} else {
			targeted = append(targeted, d)
		}
	}
	return append(broadcast, targeted...)
}

// TokenInfo is the human-readable descriptor of a token address.
type TokenInfo struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// VerifierInfo is the human-readable descriptor of a verifier type address.
type VerifierInfo struct {
	TypeName string `json:"typeName"`
}

// Subscription is one recipient's opt-in record on a messaging channel.
type Subscription struct {
	Channel Channel            `json:"channel"`
	Key     string             `json:"key"` // chat id or email address
	Address string             `json:"address,omitempty"`
	Events  map[EventKind]bool `json:"events"`
	Token   string             `json:"token,omitempty"` // email unsubscribe token
}
