package selector

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/jobclip/relay"
)

// BusSink forwards capture outcomes onto the message bus as
// content-originated messages. The popup controller claims them on the
// other side.
type BusSink struct {
	Bus    *relay.Bus
	Logger *slog.Logger
}

// Selected publishes the cycle's result as an elementSelected message.
func (s *BusSink) Selected(ctx context.Context, res Result) {
	s.publish(ctx, relay.ActionSelected, res)
}

// Canceled publishes a selectionCanceled notice.
func (s *BusSink) Canceled(ctx context.Context, reason string) {
	s.publish(ctx, relay.ActionCanceled, Cancellation{Reason: reason})
}

func (s *BusSink) publish(ctx context.Context, action string, data any) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	env, err := relay.NewEnvelope(action, data)
	if err != nil {
		logger.Error("selector: encode outcome", "action", action, "error", err)
		return
	}
	s.Bus.Publish(ctx, relay.SenderContent, env, func(payload []byte) {
		logger.Debug("selector: outcome acknowledged", "action", action, "id", env.ID)
	})
}
