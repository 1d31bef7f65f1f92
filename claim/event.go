package claim

import (
	"go.uber.org/zap/zapcore"
)

type EventKind uint8

const (
	ClaimCreated EventKind = iota + 1
	ClaimRevoked
)

func (k EventKind) String() string {
	switch k {
	case ClaimCreated:
		return "ClaimCreated"
	case ClaimRevoked:
		return "ClaimRevoked"
	default:
		return "Unknown"
	}
}

// Event notifies observers of a committed registry mutation.
type Event struct {
	Kind  EventKind
	Who   Identity
	Claim Key
}

func Created(who Identity, key Key) Event {
	return Event{Kind: ClaimCreated, Who: who, Claim: key}
}

func Revoked(who Identity, key Key) Event {
	return Event{Kind: ClaimRevoked, Who: who, Claim: key}
}

// implement zap.ObjectMarshaler interface.
func (e Event) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", e.Kind.String())
	enc.AddString("who", string(e.Who))
	enc.AddString("claim", e.Claim.String())
	return nil
}
