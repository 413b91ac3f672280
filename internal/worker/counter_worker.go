package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/modmail-service/internal/events"
	"github.com/spec-kit/modmail-service/internal/platform"
)

// StartCounterWorker keeps the ticket container's name in sync with the live
// open-ticket count by subscribing to open and close events. Renames are
// best-effort.
func StartCounterWorker(dispatcher events.Dispatcher, threads platform.ThreadService, logger *zap.Logger) {
	rename := func(ctx context.Context, count int) {
		summary := fmt.Sprintf("%d open tickets", count)
		if count == 1 {
			summary = "1 open ticket"
		}
		if err := threads.RenameContainer(ctx, summary); err != nil {
			logger.Debug("container rename failed", zap.Error(err))
		}
	}

	dispatcher.Subscribe(events.EventTicketOpened, func(ctx context.Context, event events.Event) error {
		if payload, ok := event.Payload.(events.TicketOpenedPayload); ok {
			rename(ctx, payload.OpenCount)
		}
		return nil
	})
	dispatcher.Subscribe(events.EventTicketClosed, func(ctx context.Context, event events.Event) error {
		if payload, ok := event.Payload.(events.TicketClosedPayload); ok {
			rename(ctx, payload.OpenCount)
		}
		return nil
	})
}
