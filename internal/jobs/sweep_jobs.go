package jobs

import (
	"context"
	"time"

	"kioskops-backend/internal/logger"
	"kioskops-backend/internal/queue"
)

const sweepBatchSize = 200

// SweepCancelledOrders re-publishes the cancellation side-effect message for
// cancelled orders whose ledger is still pending. The worker handlers are
// idempotent, so publishing for an order whose message is merely slow in
// flight is harmless.
func (jr *JobRunner) SweepCancelledOrders() {
	jr.runWithRecovery("SweepCancelledOrders", func() {
		ctx := context.Background()

		orders, err := jr.store.Orders().ListCancelledUnprocessed(ctx, sweepBatchSize)
		if err != nil {
			logger.Error("Failed to list unprocessed cancelled orders", "error", err)
			return
		}

		published := 0
		for _, order := range orders {
			msg := queue.OrderCancellationMessage{OrderID: order.ID}
			if err := jr.pub.Publish(ctx, queue.TopicOrderCancellation, order.ID, msg); err != nil {
				logger.Error("Failed to re-publish cancellation message",
					"order_id", order.ID, "error", err)
				continue
			}
			published++
		}

		if published > 0 {
			logger.Info("Re-published cancellation side effects", "count", published)
		}
	})
}

// SweepReturnedBookings re-publishes the deposit settlement message for
// returned bookings whose deposit ledger is still pending
func (jr *JobRunner) SweepReturnedBookings() {
	jr.runWithRecovery("SweepReturnedBookings", func() {
		ctx := context.Background()

		bookings, err := jr.store.Bookings().ListReturnedUnprocessed(ctx, sweepBatchSize)
		if err != nil {
			logger.Error("Failed to list unprocessed returned bookings", "error", err)
			return
		}

		published := 0
		for _, booking := range bookings {
			msg := queue.RentalDepositMessage{BookingID: booking.ID}
			if err := jr.pub.Publish(ctx, queue.TopicRentalDeposit, booking.ID, msg); err != nil {
				logger.Error("Failed to re-publish deposit message",
					"booking_id", booking.ID, "error", err)
				continue
			}
			published++
		}

		if published > 0 {
			logger.Info("Re-published deposit settlements", "count", published)
		}
	})
}

// SweepOverdueBookings notifies users whose picked-up rental is past its
// expected return time
func (jr *JobRunner) SweepOverdueBookings() {
	jr.runWithRecovery("SweepOverdueBookings", func() {
		ctx := context.Background()
		now := time.Now()

		bookings, err := jr.store.Bookings().ListOverdue(ctx, now, sweepBatchSize)
		if err != nil {
			logger.Error("Failed to list overdue bookings", "error", err)
			return
		}

		for _, booking := range bookings {
			jr.notifier.SendNotification(ctx, booking.UserID, "RENTAL_OVERDUE",
				"notification.booking.overdue.title", "notification.booking.overdue.body",
				map[string]string{"item_name": booking.ItemName},
				map[string]string{"booking_id": booking.ID})
			logger.Debug("Overdue reminder sent",
				"booking_id", booking.ID,
				"user_id", booking.UserID,
				"expected_return", booking.ExpectedReturn)
		}

		if len(bookings) > 0 {
			logger.Info("Overdue reminders sent", "count", len(bookings))
		}
	})
}
