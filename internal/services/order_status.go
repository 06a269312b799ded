package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/repository"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// orderFlow lists the forward moves. Cancelled and refunded are reachable
// from every non-terminal status and are handled in CanTransition.
var orderFlow = map[models.OrderStatus][]models.OrderStatus{
	models.StatusReceived:       {models.StatusConfirmed},
	models.StatusConfirmed:      {models.StatusBaking},
	models.StatusBaking:         {models.StatusDecorating},
	models.StatusDecorating:     {models.StatusQualityCheck},
	models.StatusQualityCheck:   {models.StatusReady},
	models.StatusReady:          {models.StatusOutForDelivery, models.StatusPickedUp},
	models.StatusOutForDelivery: {models.StatusDelivered},
}

// CanTransition reports whether order may move to status to.
func CanTransition(order models.Order, to models.OrderStatus) bool {
	from := order.Status
	if from.Terminal() {
		return false
	}
	if to == models.StatusCancelled || to == models.StatusRefunded {
		return true
	}

	switch to {
	case models.StatusOutForDelivery:
		if order.FulfillmentType != models.FulfillmentDelivery {
			return false
		}
	case models.StatusPickedUp:
		if order.FulfillmentType != models.FulfillmentPickup {
			return false
		}
	}

	for _, next := range orderFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses order may move to.
func NextStatuses(order models.Order) []models.OrderStatus {
	var out []models.OrderStatus
	for _, to := range orderFlow[order.Status] {
		if CanTransition(order, to) {
			out = append(out, to)
		}
	}
	if !order.Status.Terminal() {
		out = append(out, models.StatusCancelled, models.StatusRefunded)
	}
	return out
}

// OrderStatusStore reads orders and appends status history.
type OrderStatusStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	AppendStatus(ctx context.Context, id uuid.UUID, entry models.OrderStatusHistory, guard repository.StatusGuard) (*models.Order, error)
}

// SlotReleaser gives booked slot capacity back.
type SlotReleaser interface {
	ReleaseSlot(ctx context.Context, id uuid.UUID) error
}

// StatusNotifier is told about every committed status change.
type StatusNotifier interface {
	StatusChanged(order models.Order, from models.OrderStatus)
}

// OrderStatusService moves orders through their lifecycle.
type OrderStatusService struct {
	orders   OrderStatusStore
	slots    SlotReleaser
	notifier StatusNotifier
	now      func() time.Time
}

func NewOrderStatusService(orders OrderStatusStore, slots SlotReleaser, notifier StatusNotifier) *OrderStatusService {
	return &OrderStatusService{orders: orders, slots: slots, notifier: notifier, now: time.Now}
}

// Transition moves the order to status to, recording actor and note in its
// history. Cancelling or refunding gives the order's slot capacity back.
func (s *OrderStatusService) Transition(ctx context.Context, id uuid.UUID, to models.OrderStatus, actor, note string) (*models.Order, error) {
	var from models.OrderStatus
	entry := models.OrderStatusHistory{Status: to, Actor: actor, Note: note, CreatedAt: s.now()}

	order, err := s.orders.AppendStatus(ctx, id, entry, func(current *models.Order) error {
		from = current.Status
		if !CanTransition(*current, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if (to == models.StatusCancelled || to == models.StatusRefunded) && order.TimeSlotID != nil {
		// The status is already committed; finish the release even if the caller has gone.
		releaseCtx, cancel := undoContext(ctx)
		err := s.slots.ReleaseSlot(releaseCtx, *order.TimeSlotID)
		cancel()
		if err != nil {
			log.Printf("[Orders] failed to release slot %s for order %s: %v", *order.TimeSlotID, order.OrderNumber, err)
		}
	}

	log.Printf("[Orders] %s: %s -> %s by %s", order.OrderNumber, from, to, actor)
	if s.notifier != nil {
		s.notifier.StatusChanged(*order, from)
	}
	return order, nil
}

// ApplyPayment moves a received order to confirmed when its payment completes,
// or cancels it when the payment session expires. Events for orders that have
// already moved on are ignored so that redelivered webhooks are harmless.
func (s *OrderStatusService) ApplyPayment(ctx context.Context, event PaymentEvent) (*models.Order, error) {
	var to models.OrderStatus
	switch event.Kind {
	case PaymentCompleted:
		to = models.StatusConfirmed
	case PaymentExpired:
		to = models.StatusCancelled
	default:
		return nil, nil
	}

	order, err := s.orders.FindByID(ctx, event.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusReceived {
		log.Printf("[Orders] ignoring %s payment event %s for order %s in status %s",
			event.Kind, event.EventID, order.OrderNumber, order.Status)
		return order, nil
	}

	updated, err := s.Transition(ctx, order.ID, to, "payment", "session "+event.SessionID)
	if errors.Is(err, ErrInvalidTransition) {
		return s.orders.FindByID(ctx, event.OrderID)
	}
	return updated, err
}
