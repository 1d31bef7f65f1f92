package events

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/poexist/poe/claim"
	"github.com/poexist/poe/registry"
)

// LogSink writes every event to the logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("events")}
}

func (s *LogSink) Emit(_ context.Context, ev claim.Event) error {
	s.logger.Info("claim event", zap.Object("event", ev))
	return nil
}

type multiSink []registry.EventSink

// Multi delivers every event to all sinks, even if some of them fail.
func Multi(sinks ...registry.EventSink) registry.EventSink {
	return multiSink(sinks)
}

func (m multiSink) Emit(ctx context.Context, ev claim.Event) error {
	var result *multierror.Error
	for _, sink := range m {
		if err := sink.Emit(ctx, ev); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
