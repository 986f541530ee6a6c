package services

import (
	"context"
	"fmt"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
)

// Style supplies the markup tokens of one messaging channel so a single
// template set renders both chat markdown and mail HTML.
type Style struct {
	LineBreak string
	CodeOpen  string
	CodeClose string
	EmphOpen  string
	EmphClose string
}

var (
	// ChatStyle renders Telegram markdown.
	ChatStyle = Style{LineBreak: "\n", CodeOpen: "`", CodeClose: "`", EmphOpen: "*", EmphClose: "*"}
	// HTMLStyle renders mail bodies.
	HTMLStyle = Style{LineBreak: "<br>", CodeOpen: "<code>", CodeClose: "</code>", EmphOpen: "<b>", EmphClose: "</b>"}
)

func (s Style) code(v string) string { return s.CodeOpen + v + s.CodeClose }
func (s Style) emph(v string) string { return s.EmphOpen + v + s.EmphClose }

// Renderer turns a normalized event into channel-formatted text. It is pure
// given resolved enrichment; the descriptor lookups are the only place it
// may block.
type Renderer struct {
	enrich *EnrichmentCache
}

func NewRenderer(enrich *EnrichmentCache) *Renderer {
	return &Renderer{enrich: enrich}
}

// Render produces the message text for an event kind, or "" for kinds that
// are not messaging-eligible.
func (r *Renderer) Render(ctx context.Context, kind domain.EventKind, fields map[string]string, style Style) (string, error) {
	switch kind {
	case domain.Fin4TokenCreated:
		return r.renderTokenCreated(ctx, fields, style)
	case domain.ClaimApproved:
		return r.renderClaimApproved(ctx, fields, style)
	case domain.ClaimRejected:
		return r.renderClaimRejected(ctx, fields, style)
	case domain.VerifierPending:
		return r.renderVerifier(ctx, fields, style, "requires your attention")
	case domain.VerifierApproved:
		return r.renderVerifier(ctx, fields, style, "approved your claim")
	case domain.VerifierRejected:
		return r.renderVerifier(ctx, fields, style, "rejected your claim")
	case domain.NewMessage:
		return r.renderNewMessage(fields, style), nil
	default:
		return "", nil
	}
}

func (r *Renderer) renderTokenCreated(ctx context.Context, fields map[string]string, style Style) (string, error) {
	token, err := r.enrich.TokenInfo(ctx, fields["tokenAddr"])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("A new token was created: %s [%s]%sAddress: %s",
		style.emph(token.Name), token.Symbol, style.LineBreak, style.code(fields["tokenAddr"])), nil
}

func (r *Renderer) renderClaimApproved(ctx context.Context, fields map[string]string, style Style) (string, error) {
	token, err := r.enrich.TokenInfo(ctx, fields["tokenAddr"])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Your claim on %s [%s] got approved.%s%s minted, your new balance is %s.",
		style.emph(token.Name), token.Symbol, style.LineBreak,
		fields["mintedQuantity"], fields["newBalance"]), nil
}

func (r *Renderer) renderClaimRejected(ctx context.Context, fields map[string]string, style Style) (string, error) {
	token, err := r.enrich.TokenInfo(ctx, fields["tokenAddr"])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Your claim on %s [%s] got rejected.",
		style.emph(token.Name), token.Symbol), nil
}

func (r *Renderer) renderVerifier(ctx context.Context, fields map[string]string, style Style, action string) (string, error) {
	verifier, err := r.enrich.VerifierInfo(ctx, fields["verifierTypeAddress"])
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf("The verifier %s %s.", style.emph(verifier.TypeName), action)
	if msg := fields["message"]; msg != "" {
		text += style.LineBreak + style.code(msg)
	}
	return text, nil
}

func (r *Renderer) renderNewMessage(fields map[string]string, style Style) string {
	text := "You received a new message."
	if sender := fields["sender"]; sender != "" {
		text += style.LineBreak + "From: " + style.code(sender)
	}
	return text
}
