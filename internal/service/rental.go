package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/external"
	"kioskops-backend/internal/logger"
	"kioskops-backend/internal/metrics"
	"kioskops-backend/internal/payment"
	"kioskops-backend/internal/queue"
	"kioskops-backend/internal/repository"
)

type rentalService struct {
	store    repository.Store
	gateway  payment.Gateway
	pub      queue.Publisher
	checker  external.PermissionChecker
	notifier external.Notifier
	activity external.ActivityLogger
	metrics  *metrics.Metrics
}

func NewRentalService(
	store repository.Store,
	gateway payment.Gateway,
	pub queue.Publisher,
	checker external.PermissionChecker,
	notifier external.Notifier,
	activity external.ActivityLogger,
) RentalService {
	return &rentalService{
		store:    store,
		gateway:  gateway,
		pub:      pub,
		checker:  checker,
		notifier: notifier,
		activity: activity,
		metrics:  metrics.Get(),
	}
}

func (s *rentalService) CreateBooking(ctx context.Context, actor Actor, in CreateBookingInput) (*domain.RentalBooking, *BookingAction, error) {
	start := time.Now()
	booking, action, err := s.createBooking(ctx, actor, in)
	s.observe("create_booking", start, err)
	return booking, action, err
}

func (s *rentalService) createBooking(ctx context.Context, actor Actor, in CreateBookingInput) (*domain.RentalBooking, *BookingAction, error) {
	if in.ExpectedReturn != nil && in.ExpectedReturn.Before(time.Now()) {
		return nil, nil, domain.InvalidArgument("error.booking.expected_return_past", "")
	}

	var (
		user *domain.User
		box  *domain.Box
		item *domain.RentalItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.store.Users().GetByID(gctx, actor.ID)
		return err
	})
	g.Go(func() (err error) {
		box, err = s.store.Boxes().GetByID(gctx, in.PickupBoxID)
		return err
	})
	g.Go(func() (err error) {
		item, err = s.store.RentalItems().GetByID(gctx, in.ItemID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if !user.Active {
		return nil, nil, domain.FailedPrecondition("error.user.inactive", fmt.Sprintf("%d", user.ID))
	}
	if !box.Active {
		return nil, nil, domain.FailedPrecondition("error.box.inactive", fmt.Sprintf("%d", box.ID))
	}
	if !item.Active {
		return nil, nil, domain.FailedPrecondition("error.rental_item.inactive", fmt.Sprintf("%d", item.ID))
	}
	if item.Currency != box.Currency {
		return nil, nil, domain.FailedPrecondition("error.rental_item.currency_mismatch", fmt.Sprintf("%d", item.ID))
	}

	now := time.Now()
	booking := &domain.RentalBooking{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		ItemID:      item.ID,
		ItemName:    item.Name(user.Language),
		PickupBoxID: box.ID,
		Status:      domain.BookingStatusAwaitingPickup,
		StatusHistory: []domain.StatusChange{{
			Status:    string(domain.BookingStatusAwaitingPickup),
			Timestamp: now,
			ActorID:   actor.ID,
			Role:      actor.Role,
		}},
		ExpectedReturn: in.ExpectedReturn,
		DepositCents:   item.DepositCents,
		BaseFeeCents:   item.BaseFeeCents,
		Currency:       item.Currency,
		Payment: domain.PaymentRecord{
			Method:   domain.PaymentMethodCard,
			Status:   domain.PaymentStatusNone,
			Currency: item.Currency,
		},
		DepositLedger: domain.ProcessingLedger{Phase: domain.PhasePending},
	}

	// Authorize the deposit hold before anything is committed.
	if item.DepositCents > 0 {
		auth, err := s.gateway.Authorize(ctx, payment.AuthorizeRequest{
			AmountCents:  item.DepositCents,
			Currency:     item.Currency,
			CustomerRef:  user.GatewayCustomerID,
			Description:  fmt.Sprintf("rental deposit %s", booking.ID),
			PaymentToken: in.PaymentToken,
		})
		if err != nil {
			logger.Alert(ctx, "Deposit authorization outcome unknown, reconciliation required",
				"booking_id", booking.ID, "error", err)
			return nil, nil, domain.Aborted("error.payment.unavailable", "").WithCause(err)
		}
		if auth.RequiresAction {
			return nil, &BookingAction{RequiresAction: true, ActionURL: auth.ActionURL}, nil
		}
		if !auth.Success {
			return nil, nil, domain.Aborted("error.payment.declined", auth.ErrorCode)
		}
		authAt := time.Now()
		booking.Payment.Status = domain.PaymentStatusAuthorized
		booking.Payment.AuthorizationID = auth.AuthorizationID
		booking.Payment.AuthorizedCents = item.DepositCents
		booking.Payment.AuthorizedAt = &authAt
	}

	txErr := s.store.ExecTx(ctx, func(tx repository.Store) error {
		if err := tx.Boxes().AdjustInventory(ctx, booking.PickupBoxID, booking.ItemID, -1); err != nil {
			return err
		}
		return tx.Bookings().Create(ctx, booking)
	})
	if txErr != nil {
		s.compensateDeposit(ctx, booking)
		return nil, nil, txErr
	}

	go s.notifier.SendNotification(context.Background(), booking.UserID, "BOOKING_CREATED",
		"notification.booking.created.title", "notification.booking.created.body",
		map[string]string{"item": booking.ItemName}, map[string]string{"booking_id": booking.ID})
	s.activity.LogActivity(context.Background(), "booking.created", map[string]string{
		"booking_id": booking.ID,
		"item_id":    fmt.Sprintf("%d", booking.ItemID),
	}, actor.ID)
	return booking, nil, nil
}

func (s *rentalService) compensateDeposit(ctx context.Context, booking *domain.RentalBooking) {
	p := &booking.Payment
	if p.Status != domain.PaymentStatusAuthorized {
		return
	}
	res, err := s.gateway.Void(ctx, p.AuthorizationID)
	if err == nil && res.Success {
		p.Status = domain.PaymentStatusVoided
		s.metrics.Compensations.WithLabelValues("voided").Inc()
		return
	}
	s.metrics.Compensations.WithLabelValues("void_failed").Inc()
	s.metrics.OrphanedAuths.Inc()
	logger.Alert(ctx, "Compensating deposit void failed, authorization orphaned",
		"booking_id", booking.ID, "authorization_id", p.AuthorizationID, "error", err)
	s.activity.LogActivity(ctx, "payment.orphaned_authorization", map[string]string{
		"entity_kind":      "booking",
		"entity_id":        booking.ID,
		"authorization_id": p.AuthorizationID,
	}, 0)
}

func (s *rentalService) ConfirmPickup(ctx context.Context, actor Actor, bookingID string) error {
	start := time.Now()
	err := s.confirmPickup(ctx, actor, bookingID)
	s.observe("confirm_pickup", start, err)
	return err
}

func (s *rentalService) confirmPickup(ctx context.Context, actor Actor, bookingID string) error {
	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	allowed, err := s.checker.CheckPermission(ctx, actor.ID, actor.Role, "booking.confirm_pickup", bookingID)
	if err != nil {
		return fmt.Errorf("permission check failed: %w", err)
	}
	if !allowed {
		return domain.PermissionDenied("error.booking.pickup_forbidden", bookingID)
	}

	if !domain.CanTransitionBooking(booking.Status, domain.BookingStatusPickedUp) {
		return domain.FailedPrecondition("error.booking.invalid_transition",
			fmt.Sprintf("%s->%s", booking.Status, domain.BookingStatusPickedUp))
	}

	now := time.Now()
	change := domain.StatusChange{
		Status:    string(domain.BookingStatusPickedUp),
		Timestamp: now,
		ActorID:   actor.ID,
		Role:      actor.Role,
	}
	err = s.store.ExecTx(ctx, func(tx repository.Store) error {
		return tx.Bookings().MarkPickedUp(ctx, bookingID, actor.ID, now, change)
	})
	if err != nil {
		return err
	}

	go s.notifier.SendNotification(context.Background(), booking.UserID, "BOOKING_PICKED_UP",
		"notification.booking.picked_up.title", "notification.booking.picked_up.body",
		map[string]string{"item": booking.ItemName}, map[string]string{"booking_id": bookingID})
	s.activity.LogActivity(context.Background(), "booking.picked_up", map[string]string{
		"booking_id": bookingID,
	}, actor.ID)
	return nil
}

func (s *rentalService) ConfirmReturn(ctx context.Context, actor Actor, bookingID string, returnBoxID int64, condition domain.ReturnCondition, notes string) error {
	start := time.Now()
	err := s.confirmReturn(ctx, actor, bookingID, returnBoxID, condition, notes)
	s.observe("confirm_return", start, err)
	return err
}

func (s *rentalService) confirmReturn(ctx context.Context, actor Actor, bookingID string, returnBoxID int64, condition domain.ReturnCondition, notes string) error {
	switch condition {
	case domain.ReturnConditionGood, domain.ReturnConditionDirty, domain.ReturnConditionDamaged:
	default:
		return domain.InvalidArgument("error.booking.unknown_condition", string(condition))
	}

	var (
		booking   *domain.RentalBooking
		returnBox *domain.Box
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		booking, err = s.store.Bookings().GetByID(gctx, bookingID)
		return err
	})
	g.Go(func() (err error) {
		returnBox, err = s.store.Boxes().GetByID(gctx, returnBoxID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	allowed, err := s.checker.CheckPermission(ctx, actor.ID, actor.Role, "booking.confirm_return", bookingID)
	if err != nil {
		return fmt.Errorf("permission check failed: %w", err)
	}
	if !allowed {
		return domain.PermissionDenied("error.booking.return_forbidden", bookingID)
	}
	if !returnBox.Active {
		return domain.FailedPrecondition("error.box.inactive", fmt.Sprintf("%d", returnBoxID))
	}
	if !domain.CanTransitionBooking(booking.Status, domain.BookingStatusReturnedPendingInspection) {
		return domain.FailedPrecondition("error.booking.invalid_transition",
			fmt.Sprintf("%s->%s", booking.Status, domain.BookingStatusReturnedPendingInspection))
	}

	now := time.Now()
	change := domain.StatusChange{
		Status:    string(domain.BookingStatusReturnedPendingInspection),
		Timestamp: now,
		ActorID:   actor.ID,
		Role:      actor.Role,
		Reason:    notes,
	}
	err = s.store.ExecTx(ctx, func(tx repository.Store) error {
		if err := tx.Bookings().MarkReturned(ctx, bookingID, returnBoxID, actor.ID, now, condition, notes, change); err != nil {
			return err
		}
		// The unit goes back on the shelf at the return location.
		return tx.Boxes().AdjustInventory(ctx, returnBoxID, booking.ItemID, 1)
	})
	if err != nil {
		return err
	}

	// Deposit settlement is deferred to the worker; the sweep job re-publishes
	// if this publish is lost.
	if err := s.pub.Publish(ctx, queue.TopicRentalDeposit, bookingID,
		queue.RentalDepositMessage{BookingID: bookingID}); err != nil {
		logger.Alert(ctx, "Failed to enqueue deposit processing, sweep will retry",
			"booking_id", bookingID, "error", err)
	}

	go s.notifier.SendNotification(context.Background(), booking.UserID, "BOOKING_RETURNED",
		"notification.booking.returned.title", "notification.booking.returned.body",
		map[string]string{"item": booking.ItemName}, map[string]string{"booking_id": bookingID})
	s.activity.LogActivity(context.Background(), "booking.returned", map[string]string{
		"booking_id": bookingID,
		"condition":  string(condition),
	}, actor.ID)
	return nil
}

func (s *rentalService) CancelBooking(ctx context.Context, actor Actor, bookingID string, reason string) error {
	start := time.Now()
	err := s.cancelBooking(ctx, actor, bookingID, reason)
	s.observe("cancel_booking", start, err)
	return err
}

func (s *rentalService) cancelBooking(ctx context.Context, actor Actor, bookingID string, reason string) error {
	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != actor.ID && !actor.Role.Elevated() {
		return domain.PermissionDenied("error.booking.cancel_forbidden", bookingID)
	}

	if booking.Status == domain.BookingStatusCancelled {
		return nil // already there
	}
	if !domain.CanTransitionBooking(booking.Status, domain.BookingStatusCancelled) {
		return domain.FailedPrecondition("error.booking.invalid_transition",
			fmt.Sprintf("%s->%s", booking.Status, domain.BookingStatusCancelled))
	}

	// Release the deposit hold before committing the cancellation. A failed
	// void is flagged on the record; the cancellation proceeds.
	p := booking.Payment
	if p.Status == domain.PaymentStatusAuthorized {
		res, verr := s.gateway.Void(ctx, p.AuthorizationID)
		if verr != nil || !res.Success {
			code := "network_error"
			if res != nil {
				code = res.ErrorCode
			}
			p.GatewayErrorCode = "void_failed:" + code
			s.metrics.OrphanedAuths.Inc()
			logger.Alert(ctx, "Void on booking cancellation failed, manual reconciliation required",
				"booking_id", bookingID, "authorization_id", p.AuthorizationID, "error", verr)
		} else {
			p.Status = domain.PaymentStatusVoided
			s.metrics.Compensations.WithLabelValues("voided").Inc()
		}
		if err := s.store.Bookings().UpdatePayment(ctx, bookingID, p); err != nil {
			logger.Error("Failed to persist void outcome", "booking_id", bookingID, "error", err)
		}
	}

	change := domain.StatusChange{
		Status:    string(domain.BookingStatusCancelled),
		Timestamp: time.Now(),
		ActorID:   actor.ID,
		Role:      actor.Role,
		Reason:    reason,
	}
	err = s.store.ExecTx(ctx, func(tx repository.Store) error {
		fresh, err := tx.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if fresh.Status == domain.BookingStatusCancelled {
			return nil
		}
		if !domain.CanTransitionBooking(fresh.Status, domain.BookingStatusCancelled) {
			return domain.FailedPrecondition("error.booking.invalid_transition",
				fmt.Sprintf("%s->%s", fresh.Status, domain.BookingStatusCancelled))
		}
		if err := tx.Bookings().UpdateStatus(ctx, bookingID, fresh.Status, domain.BookingStatusCancelled, change); err != nil {
			return err
		}
		// The held unit goes back on the shelf at the pickup location.
		return tx.Boxes().AdjustInventory(ctx, booking.PickupBoxID, booking.ItemID, 1)
	})
	if err != nil {
		return err
	}

	go s.notifier.SendNotification(context.Background(), booking.UserID, "BOOKING_CANCELLED",
		"notification.booking.cancelled.title", "notification.booking.cancelled.body",
		map[string]string{"item": booking.ItemName, "reason": reason},
		map[string]string{"booking_id": bookingID})
	s.activity.LogActivity(context.Background(), "booking.cancelled", map[string]string{
		"booking_id": bookingID,
		"reason":     reason,
	}, actor.ID)
	return nil
}

func (s *rentalService) GetBooking(ctx context.Context, actor Actor, bookingID string) (*domain.RentalBooking, error) {
	booking, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.ID && !actor.Role.Elevated() {
		return nil, domain.PermissionDenied("error.booking.read_forbidden", bookingID)
	}
	return booking, nil
}

func (s *rentalService) ListBookings(ctx context.Context, actor Actor, page, pageSize int32) ([]domain.RentalBooking, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.store.Bookings().ListByUser(ctx, actor.ID, page, pageSize)
}

func (s *rentalService) observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(domain.CodeOf(err))
	}
	s.metrics.Operations.WithLabelValues(operation, outcome).Inc()
	s.metrics.OpLatencyMS.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
}
