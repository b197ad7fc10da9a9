package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/external"
	"kioskops-backend/internal/logger"
	"kioskops-backend/internal/metrics"
	"kioskops-backend/internal/payment"
	"kioskops-backend/internal/queue"
	"kioskops-backend/internal/repository"
	"kioskops-backend/internal/utils"
)

// FeePolicy is the deposit settlement pricing, loaded from config
type FeePolicy struct {
	OvertimeInterval time.Duration
	OvertimeFeeCents int64
	CleaningFeeCents int64
}

// Worker consumes the side-effect topics. Delivery is at-least-once, so every
// handler re-reads the entity and checks its processing ledger before doing
// anything; a done ledger means the message is a redelivery and is dropped.
type Worker struct {
	store    repository.Store
	gateway  payment.Gateway
	consumer queue.Consumer
	notifier external.Notifier
	policy   FeePolicy
	metrics  *metrics.Metrics
}

func New(store repository.Store, gateway payment.Gateway, consumer queue.Consumer, notifier external.Notifier, policy FeePolicy) *Worker {
	return &Worker{
		store:    store,
		gateway:  gateway,
		consumer: consumer,
		notifier: notifier,
		policy:   policy,
		metrics:  metrics.Get(),
	}
}

// Run is the consumer loop. It exits when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("Side-effect worker started")
	for {
		msg, err := w.consumer.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info("Side-effect worker stopping")
				return nil
			}
			logger.Error("Failed to receive message", "error", err)
			continue
		}

		if err := w.handle(ctx, msg); err != nil {
			// Transient failure: release without committing. The sweep jobs
			// re-publish the entity while its ledger stays pending.
			w.metrics.WorkerMsgs.WithLabelValues(msg.Topic, "retry").Inc()
			logger.Warn("Message processing failed, sweep will resend",
				"topic", msg.Topic, "key", msg.Key, "error", err)
			if err := w.consumer.Nack(ctx, msg); err != nil {
				logger.Error("Failed to nack message", "topic", msg.Topic, "key", msg.Key, "error", err)
			}
			continue
		}
		if err := w.consumer.Ack(ctx, msg); err != nil {
			logger.Error("Failed to ack message", "topic", msg.Topic, "key", msg.Key, "error", err)
		}
	}
}

// handle returns nil when the message is finished (processed, no-op, or
// permanently undeliverable) and an error only for transient failures that
// should be redelivered.
func (w *Worker) handle(ctx context.Context, msg *queue.Message) error {
	switch msg.Topic {
	case queue.TopicOrderCancellation:
		var m queue.OrderCancellationMessage
		if err := json.Unmarshal(msg.Value, &m); err != nil || m.OrderID == "" {
			w.drop(msg, "malformed payload")
			return nil
		}
		return w.processOrderCancellation(ctx, msg, m.OrderID)
	case queue.TopicRentalDeposit:
		var m queue.RentalDepositMessage
		if err := json.Unmarshal(msg.Value, &m); err != nil || m.BookingID == "" {
			w.drop(msg, "malformed payload")
			return nil
		}
		return w.processDepositSettlement(ctx, msg, m.BookingID)
	default:
		w.drop(msg, "unknown topic")
		return nil
	}
}

func (w *Worker) drop(msg *queue.Message, reason string) {
	w.metrics.WorkerMsgs.WithLabelValues(msg.Topic, "dropped").Inc()
	logger.Warn("Dropping message", "topic", msg.Topic, "key", msg.Key, "reason", reason)
}

// processOrderCancellation restores the inventory a cancelled order had
// consumed. The restore and the ledger flip commit in one transaction, so a
// redelivery after the commit finds the ledger done and does nothing.
func (w *Worker) processOrderCancellation(ctx context.Context, msg *queue.Message, orderID string) error {
	order, err := w.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		if domain.IsCode(err, domain.ErrNotFound) {
			w.drop(msg, "order not found")
			return nil
		}
		return err
	}
	if order.Status != domain.OrderStatusCancelled {
		w.drop(msg, "order not cancelled")
		return nil
	}
	if order.CancellationLedger.Phase != domain.PhasePending {
		w.metrics.WorkerMsgs.WithLabelValues(msg.Topic, "noop").Inc()
		return nil
	}

	err = w.store.ExecTx(ctx, func(tx repository.Store) error {
		fresh, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if fresh.CancellationLedger.Phase != domain.PhasePending {
			return nil
		}
		for _, item := range fresh.Items {
			if err := tx.Boxes().AdjustInventory(ctx, fresh.BoxID, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if fresh.LoyaltyUsedCents > 0 {
			if err := tx.Users().AdjustLoyaltyBalance(ctx, fresh.UserID, fresh.LoyaltyUsedCents); err != nil {
				return err
			}
		}
		return tx.Orders().SetCancellationPhase(ctx, orderID, domain.PhaseDone, time.Now())
	})
	if err != nil {
		return err
	}

	w.metrics.WorkerMsgs.WithLabelValues(msg.Topic, "processed").Inc()
	logger.Info("Order cancellation side effects applied", "order_id", orderID)
	return nil
}

// processDepositSettlement computes the final rental charge and finalizes the
// deposit hold. The gateway call is not transactional, so the ordering is:
// compute, finalize, then atomically record the outcome together with the
// ledger flip. A transient gateway error leaves the booking pending for
// redelivery; a definitive gateway refusal parks the booking in manual
// review instead of looping.
func (w *Worker) processDepositSettlement(ctx context.Context, msg *queue.Message, bookingID string) error {
	booking, err := w.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		if domain.IsCode(err, domain.ErrNotFound) {
			w.drop(msg, "booking not found")
			return nil
		}
		return err
	}
	if booking.DepositLedger.Phase != domain.PhasePending {
		w.metrics.WorkerMsgs.WithLabelValues(msg.Topic, "noop").Inc()
		return nil
	}
	if booking.Status != domain.BookingStatusReturnedPendingInspection {
		w.drop(msg, "booking not awaiting settlement")
		return nil
	}
	if booking.ReturnedAt == nil {
		return w.parkForReview(ctx, msg, booking, "missing return timestamp")
	}

	charge, err := utils.CalculateRentalCharge(utils.RentalChargeInput{
		BaseFeeCents:     booking.BaseFeeCents,
		DepositCents:     booking.DepositCents,
		ExpectedReturn:   booking.ExpectedReturn,
		ReturnedAt:       *booking.ReturnedAt,
		Condition:        booking.ReturnCondition,
		OvertimeInterval: w.policy.OvertimeInterval,
		OvertimeFeeCents: w.policy.OvertimeFeeCents,
		CleaningFeeCents: w.policy.CleaningFeeCents,
	})
	if err != nil {
		return w.parkForReview(ctx, msg, booking, "charge computation failed")
	}

	pay := booking.Payment
	if pay.Status == domain.PaymentStatusAuthorized {
		res, gerr := w.gateway.Finalize(ctx, pay.AuthorizationID, charge.FinalChargeCents, pay.AuthorizedCents, pay.Currency)
		if gerr != nil {
			// Network failure: status unknown, keep the booking pending.
			return gerr
		}
		if !res.Success {
			logger.Alert(ctx, "Deposit finalize refused by gateway",
				"booking_id", bookingID, "gateway_code", res.ErrorCode)
			pay.GatewayErrorCode = res.ErrorCode
			booking.Payment = pay
			return w.parkForReview(ctx, msg, booking, "gateway refused finalize")
		}
		settledAt := time.Now()
		if charge.FinalChargeCents == 0 {
			pay.Status = domain.PaymentStatusVoided
		} else {
			pay.Status = domain.PaymentStatusCaptured
		}
		pay.SettlementID = res.SettlementID
		pay.CapturedCents = res.AmountCents
		pay.SettledAt = &settledAt
		booking.Payment = pay
	}

	// Damaged returns carry an implied damage fee, not a priced assessment;
	// they always go to a person.
	target := domain.BookingStatusCompleted
	phase := domain.PhaseDone
	if booking.ReturnCondition == domain.ReturnConditionDamaged {
		target = domain.BookingStatusRequiresManualReview
		phase = domain.PhaseManualReview
	}

	now := time.Now()
	change := domain.StatusChange{
		Status:    string(target),
		Timestamp: now,
		Reason:    "deposit settled",
	}
	err = w.store.ExecTx(ctx, func(tx repository.Store) error {
		return tx.Bookings().RecordSettlement(ctx, bookingID, charge, pay, phase, now,
			domain.BookingStatusReturnedPendingInspection, target, change)
	})
	if err != nil {
		if domain.IsCode(err, domain.ErrAborted) {
			// Someone else settled concurrently; the money already moved
			// here though, so this needs eyes.
			return w.parkForReview(ctx, msg, booking, "settlement record conflict")
		}
		// The charge went through but the outcome is not recorded. Do not
		// retry the finalize on redelivery; park instead.
		logger.Alert(ctx, "Settlement committed at gateway but not recorded",
			"booking_id", bookingID, "error", err)
		return w.parkForReview(ctx, msg, booking, "settlement persistence failed")
	}

	w.metrics.WorkerMsgs.WithLabelValues(msg.Topic, "processed").Inc()
	w.notifier.SendNotification(ctx, booking.UserID, "DEPOSIT_SETTLED",
		"notification.booking.settled.title", "notification.booking.settled.body",
		map[string]string{"amount_cents": strconv.FormatInt(charge.FinalChargeCents, 10)},
		map[string]string{"booking_id": bookingID})
	logger.Info("Deposit settled", "booking_id", bookingID,
		"final_charge_cents", charge.FinalChargeCents, "status", target)
	return nil
}

// parkForReview moves a booking out of the retry path permanently
func (w *Worker) parkForReview(ctx context.Context, msg *queue.Message, booking *domain.RentalBooking, reason string) error {
	now := time.Now()
	change := domain.StatusChange{
		Status:    string(domain.BookingStatusRequiresManualReview),
		Timestamp: now,
		Reason:    reason,
	}
	err := w.store.ExecTx(ctx, func(tx repository.Store) error {
		if err := tx.Bookings().SetDepositPhase(ctx, booking.ID, domain.PhaseManualReview, now); err != nil {
			return err
		}
		if err := tx.Bookings().UpdatePayment(ctx, booking.ID, booking.Payment); err != nil {
			return err
		}
		if booking.Status != domain.BookingStatusRequiresManualReview {
			return tx.Bookings().UpdateStatus(ctx, booking.ID, booking.Status, domain.BookingStatusRequiresManualReview, change)
		}
		return nil
	})
	if err != nil {
		// Could not even park it; let redelivery try again.
		return err
	}
	w.metrics.WorkerMsgs.WithLabelValues(msg.Topic, "manual_review").Inc()
	logger.Alert(ctx, "Booking parked for manual review", "booking_id", booking.ID, "reason", reason)
	return nil
}
