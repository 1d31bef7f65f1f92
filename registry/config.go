package registry

import (
	"go.uber.org/zap/zapcore"
)

func DefaultConfig() Config {
	return Config{
		LockStripes: 256,
	}
}

type Config struct {
	LockStripes int `long:"lock-stripes" description:"The number of lock stripes guarding claim keys"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("lock-stripes", c.LockStripes)
	return nil
}
