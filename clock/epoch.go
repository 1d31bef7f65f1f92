package clock

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Epoch derives logical time from wall-clock time: the value is the number of the
// epoch open at the moment of reading. Epoch 0 lasts from genesis until genesis+PhaseShift,
// every following epoch lasts EpochDuration.
type Epoch struct {
	Genesis       time.Time
	PhaseShift    time.Duration
	EpochDuration time.Duration

	now func() time.Time
}

type EpochOptionFunc func(*Epoch)

// WithTimeSource replaces time.Now (used in tests).
func WithTimeSource(now func() time.Time) EpochOptionFunc {
	return func(e *Epoch) {
		e.now = now
	}
}

func NewEpoch(genesis time.Time, phaseShift, epochDuration time.Duration, opts ...EpochOptionFunc) *Epoch {
	e := &Epoch{
		Genesis:       genesis,
		PhaseShift:    phaseShift,
		EpochDuration: epochDuration,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Epoch) Now() uint64 {
	return e.OpenEpoch(e.now())
}

// OpenEpoch calculates the epoch open at a given point in time.
func (e *Epoch) OpenEpoch(when time.Time) uint64 {
	sinceGenesis := when.Sub(e.Genesis)
	if sinceGenesis < e.PhaseShift {
		return 0
	}
	return uint64((sinceGenesis-e.PhaseShift)/e.EpochDuration) + 1
}

// EpochStart returns the time at which the given epoch opens.
func (e *Epoch) EpochStart(epoch uint64) time.Time {
	if epoch == 0 {
		return e.Genesis
	}
	return e.Genesis.Add(e.PhaseShift).Add(e.EpochDuration * time.Duration(epoch-1))
}

// implement zap.ObjectMarshaler interface.
func (e *Epoch) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("genesis", e.Genesis)
	enc.AddDuration("phase-shift", e.PhaseShift)
	enc.AddDuration("epoch-duration", e.EpochDuration)
	return nil
}
