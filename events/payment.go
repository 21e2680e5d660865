package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/models"
)

// publishTimeout bounds a publish made after the request has been answered
const publishTimeout = 5 * time.Second

// RoutingKey is the topic a transition to s is published under
func RoutingKey(s models.ProcessStatus) string {
	return "payment." + string(s)
}

// PaymentNotifier publishes every committed payment transition
type PaymentNotifier struct {
	Publisher Publisher
}

// PaymentChanged publishes ev. Failures are logged, the transition stands.
func (n PaymentNotifier) PaymentChanged(ctx context.Context, ev models.PaymentEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.Publisher.Publish(ctx, RoutingKey(ev.Type), ev); err != nil {
		zap.S().Errorw("failed to publish payment event",
			"reference", ev.Attempt.Reference,
			"status", ev.Type,
			"error", err)
	}
}
