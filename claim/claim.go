package claim

import (
	"strconv"

	"go.uber.org/zap/zapcore"
)

// Identity is an opaque token of an authenticated caller.
type Identity string

func (id Identity) Valid() bool {
	return id != ""
}

// Claim is the record stored for every claimed key.
type Claim struct {
	Owner        Identity
	RegisteredAt uint64
}

// implement zap.ObjectMarshaler interface.
func (c Claim) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("owner", string(c.Owner))
	enc.AddUint64("registered_at", c.RegisteredAt)
	return nil
}

func (c Claim) String() string {
	return string(c.Owner) + "@" + strconv.FormatUint(c.RegisteredAt, 10)
}
