package domain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ContractEvent is the raw callback payload from the event source. Fields is
// a mixed bag: decoded named arguments plus positional duplicates under
// numeric keys, exactly as event libraries tend to hand them over.
type ContractEvent struct {
	Contract string
	Kind     EventKind
	Fields   map[string]any
}

// Event is the normalized domain event consumed by the dispatcher. Fields
// holds named string values only; large integers are decimalized.
type Event struct {
	Kind     EventKind
	Contract string
	Fields   map[string]string
	Target   string // derived target address when the audience is targeted
}

// NormalizeAddress lower-cases and validates an account identifier.
func NormalizeAddress(addr string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(addr))
	if !common.IsHexAddress(a) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return a, nil
}

// Normalize converts a raw contract event into a domain Event. Numeric-looking
// keys are positional duplicates of the named arguments and are discarded;
// they must not be relied upon for field order. A synthesized "contract"
// field carries the originating contract name.
func Normalize(raw ContractEvent) (Event, error) {
	fields := make(map[string]string, len(raw.Fields)+1)
	for k, v := range raw.Fields {
		if isPositionalKey(k) {
			continue
		}
		fields[k] = stringifyValue(v)
	}
	fields["contract"] = raw.Contract

	evt := Event{Kind: raw.Kind, Contract: raw.Contract, Fields: fields}

	desc, ok := DescriptorFor(raw.Kind)
	if !ok {
		return evt, nil
	}
	if desc.Audience == AudienceTargeted {
		target, ok := fields[desc.TargetField]
		if !ok || target == "" {
			return Event{}, fmt.Errorf("event %s missing target field %q", raw.Kind, desc.TargetField)
		}
		normalized, err := NormalizeAddress(target)
		if err != nil {
			return Event{}, fmt.Errorf("event %s target: %w", raw.Kind, err)
		}
		evt.Target = normalized
		evt.Fields[desc.TargetField] = normalized
	}
	return evt, nil
}

func isPositionalKey(k string) bool {
	_, err := strconv.Atoi(k)
	return err == nil
}

func stringifyValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case *big.Int:
		return x.String()
	case common.Address:
		return strings.ToLower(x.Hex())
	case []byte:
		return common.Bytes2Hex(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
