/**
 * @description
 * Broker-side entry point into payment verification. The processor publishes
 * a checkout.session.completed event when a session settles; this consumer
 * extracts the session id and runs the same verification path the HTTP
 * endpoint uses. The event body is otherwise untrusted.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/televip/billing-service/internal/domain"
)

type CheckoutEventsConsumer struct {
	service *Service
}

func NewCheckoutEventsConsumer(service *Service) *CheckoutEventsConsumer {
	return &CheckoutEventsConsumer{service: service}
}

// HandleSessionCompleted processes one checkout.session.completed delivery.
// The return value is the ack decision: true acknowledges, false re-queues.
func (c *CheckoutEventsConsumer) HandleSessionCompleted(body []byte) bool {
	var event domain.CheckoutSessionCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("checkout-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	if event.SessionID == "" {
		log.Printf("checkout-consumer: missing session id in event; acknowledging to drop")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := c.service.VerifyPayment(ctx, event.SessionID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrSessionUnpaid):
		// The processor signalled completion but reports unpaid on re-fetch;
		// requeue and let a later delivery observe the settled state.
		log.Printf("checkout-consumer: session %s not yet paid; re-queuing", event.SessionID)
		return false
	case errors.Is(err, ErrSessionMetadata):
		// Retrying cannot fix a malformed session. Drop it and leave the
		// evidence in the logs.
		log.Printf("checkout-consumer: session %s has invalid metadata; acknowledging to drop: %v", event.SessionID, err)
		return true
	default:
		log.Printf("checkout-consumer: processing error for session %s: %v", event.SessionID, err)
		return false
	}
}
