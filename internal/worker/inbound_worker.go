package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/modmail-service/internal/platform"
	"github.com/spec-kit/modmail-service/internal/service"
)

// StartInboundWorker consumes the platform's inbound direct-message channel
// and feeds each message into the ticket lifecycle. It returns immediately;
// the loop stops when the source channel closes or the context is cancelled.
func StartInboundWorker(ctx context.Context, source platform.InboundSource, tickets *service.TicketService, logger *zap.Logger) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-source.Inbound():
				if !ok {
					logger.Info("inbound source closed, worker stopping")
					return
				}
				if err := tickets.HandleUserMessage(ctx, msg); err != nil {
					logger.Warn("inbound message handling failed",
						zap.String("user_id", msg.UserID),
						zap.Error(err),
					)
				}
			}
		}
	}()
}
