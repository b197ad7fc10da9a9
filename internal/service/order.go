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
	"kioskops-backend/internal/utils"
)

type orderService struct {
	store    repository.Store
	gateway  payment.Gateway
	pub      queue.Publisher
	checker  external.PermissionChecker
	notifier external.Notifier
	activity external.ActivityLogger
	metrics  *metrics.Metrics
}

func NewOrderService(
	store repository.Store,
	gateway payment.Gateway,
	pub queue.Publisher,
	checker external.PermissionChecker,
	notifier external.Notifier,
	activity external.ActivityLogger,
) OrderService {
	return &orderService{
		store:    store,
		gateway:  gateway,
		pub:      pub,
		checker:  checker,
		notifier: notifier,
		activity: activity,
		metrics:  metrics.Get(),
	}
}

func (s *orderService) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*domain.Order, error) {
	start := time.Now()
	order, err := s.createOrder(ctx, actor, in)
	s.observe("create_order", start, err)
	return order, err
}

func (s *orderService) createOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, domain.InvalidArgument("error.order.no_items", "")
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, domain.InvalidArgument("error.order.invalid_quantity", fmt.Sprintf("%d", item.ProductID))
		}
	}

	// Load everything the order references concurrently; any miss fails the
	// whole operation before money moves.
	var (
		user     *domain.User
		box      *domain.Box
		products []domain.Product
		promo    *domain.PromoCode
	)
	productIDs := make([]int64, len(in.Items))
	for i, item := range in.Items {
		productIDs[i] = item.ProductID
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.store.Users().GetByID(gctx, actor.ID)
		return err
	})
	g.Go(func() (err error) {
		box, err = s.store.Boxes().GetByID(gctx, in.BoxID)
		return err
	})
	g.Go(func() (err error) {
		products, err = s.store.Products().GetManyByIDs(gctx, productIDs)
		return err
	})
	if in.CouponCode != "" {
		g.Go(func() (err error) {
			promo, err = s.store.Promos().GetByCode(gctx, in.CouponCode)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()
	if !user.Active {
		return nil, domain.FailedPrecondition("error.user.inactive", fmt.Sprintf("%d", user.ID))
	}
	if !box.Active {
		return nil, domain.FailedPrecondition("error.box.inactive", fmt.Sprintf("%d", box.ID))
	}
	items := make([]domain.OrderItem, len(in.Items))
	for i, p := range products {
		if !p.Active {
			return nil, domain.FailedPrecondition("error.product.inactive", fmt.Sprintf("%d", p.ID))
		}
		if p.Currency != box.Currency {
			return nil, domain.FailedPrecondition("error.product.currency_mismatch", fmt.Sprintf("%d", p.ID))
		}
		items[i] = domain.OrderItem{
			ProductID:      p.ID,
			Name:           p.Name(user.Language),
			UnitPriceCents: p.PriceCents,
			Quantity:       in.Items[i].Quantity,
		}
	}

	var couponDiscount int64
	if promo != nil {
		// Advisory only; the authoritative check is the conditional counter
		// increment inside the transaction.
		if !promo.Redeemable(now) {
			return nil, domain.FailedPrecondition("error.promo.not_valid", promo.Code)
		}
		couponDiscount = promo.DiscountCents
	}
	if in.LoyaltyCents > user.LoyaltyBalance {
		return nil, domain.ResourceExhausted("error.user.loyalty_insufficient", fmt.Sprintf("%d", user.ID))
	}

	totals, err := utils.CalculateOrderTotals(utils.OrderTotalsInput{
		Items:               items,
		CouponDiscountCents: couponDiscount,
		LoyaltyRequested:    in.LoyaltyCents,
		LoyaltyBalance:      user.LoyaltyBalance,
		TipCents:            in.TipCents,
	})
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:     uuid.NewString(),
		UserID: user.ID,
		BoxID:  box.ID,
		Items:  items,
		Status: domain.OrderStatusCreated,
		StatusHistory: []domain.StatusChange{{
			Status:    string(domain.OrderStatusCreated),
			Timestamp: now,
			ActorID:   actor.ID,
			Role:      actor.Role,
		}},
		Payment: domain.PaymentRecord{
			Method:   in.Method,
			Status:   domain.PaymentStatusNone,
			Currency: box.Currency,
		},
		Totals:             totals,
		CouponCode:         in.CouponCode,
		LoyaltyUsedCents:   totals.LoyaltyDiscountCents,
		CancellationLedger: domain.ProcessingLedger{Phase: domain.PhasePending},
	}

	// Authorize before the transaction opens; a decline leaves nothing to
	// compensate.
	if in.Method.RequiresAuthorization() && totals.FinalAmountCents > 0 {
		auth, err := s.gateway.Authorize(ctx, payment.AuthorizeRequest{
			AmountCents:  totals.FinalAmountCents,
			Currency:     box.Currency,
			CustomerRef:  user.GatewayCustomerID,
			Description:  fmt.Sprintf("order %s", order.ID),
			PaymentToken: in.PaymentToken,
		})
		if err != nil {
			// Status unknown (network/timeout): treat as declined, flag for
			// reconciliation in case the hold actually exists.
			logger.Alert(ctx, "Authorization outcome unknown, reconciliation required",
				"order_id", order.ID, "error", err)
			return nil, domain.Aborted("error.payment.unavailable", "").WithCause(err)
		}
		if auth.RequiresAction {
			return nil, domain.FailedPrecondition("error.payment.requires_action", auth.ActionURL)
		}
		if !auth.Success {
			return nil, domain.Aborted("error.payment.declined", auth.ErrorCode)
		}
		authAt := time.Now()
		order.Payment.Status = domain.PaymentStatusAuthorized
		order.Payment.AuthorizationID = auth.AuthorizationID
		order.Payment.AuthorizedCents = totals.FinalAmountCents
		order.Payment.AuthorizedAt = &authAt
	}

	txErr := s.store.ExecTx(ctx, func(tx repository.Store) error {
		for _, item := range order.Items {
			if err := tx.Boxes().AdjustInventory(ctx, order.BoxID, item.ProductID, -item.Quantity); err != nil {
				return err
			}
		}
		if totals.LoyaltyDiscountCents > 0 {
			if err := tx.Users().AdjustLoyaltyBalance(ctx, order.UserID, -totals.LoyaltyDiscountCents); err != nil {
				return err
			}
		}
		if order.CouponCode != "" {
			if err := tx.Promos().ConsumeUse(ctx, order.CouponCode, now); err != nil {
				return err
			}
		}
		return tx.Orders().Create(ctx, order)
	})
	if txErr != nil {
		s.compensateAuthorization(ctx, &order.Payment, "order", order.ID)
		return nil, txErr
	}

	s.dispatchSideEffects(order, actor)
	return order, nil
}

// compensateAuthorization voids a hold left behind by a failed commit. A
// failed void leaves an orphaned liability: alert, count it, and record it in
// the activity log for manual reconciliation.
func (s *orderService) compensateAuthorization(ctx context.Context, p *domain.PaymentRecord, entityKind, entityID string) {
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
	logger.Alert(ctx, "Compensating void failed, authorization orphaned",
		"entity_kind", entityKind, "entity_id", entityID, "authorization_id", p.AuthorizationID, "error", err)
	s.activity.LogActivity(ctx, "payment.orphaned_authorization", map[string]string{
		"entity_kind":      entityKind,
		"entity_id":        entityID,
		"authorization_id": p.AuthorizationID,
	}, 0)
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, actor Actor, orderID string, newStatus string, reason string) error {
	start := time.Now()
	err := s.updateOrderStatus(ctx, actor, orderID, newStatus, reason)
	s.observe("update_order_status", start, err)
	return err
}

func (s *orderService) updateOrderStatus(ctx context.Context, actor Actor, orderID string, newStatus string, reason string) error {
	target, err := domain.ParseOrderStatus(newStatus)
	if err != nil {
		return err
	}

	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	allowed, err := s.checker.CheckPermission(ctx, actor.ID, actor.Role, "order.update_status", orderID)
	if err != nil {
		return fmt.Errorf("permission check failed: %w", err)
	}
	if !allowed {
		return domain.PermissionDenied("error.order.update_forbidden", orderID)
	}

	// Advisory check for fast feedback; re-evaluated against fresh state
	// inside the transaction.
	if order.Status == target && target.Terminal() {
		return nil
	}
	if !domain.CanTransitionOrder(order.Status, target, actor.Role) {
		return domain.FailedPrecondition("error.order.invalid_transition",
			fmt.Sprintf("%s->%s", order.Status, target))
	}

	// Terminal money movements happen outside the transaction: the gateway
	// is not transactional and ExecTx may re-run its function on conflict.
	switch target {
	case domain.OrderStatusDelivered:
		s.captureOnDelivery(ctx, order)
	case domain.OrderStatusCancelled:
		s.voidOnCancellation(ctx, order)
	}

	change := domain.StatusChange{
		Status:    string(target),
		Timestamp: time.Now(),
		ActorID:   actor.ID,
		Role:      actor.Role,
		Reason:    reason,
	}

	txErr := s.store.ExecTx(ctx, func(tx repository.Store) error {
		fresh, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if fresh.Status == target {
			if target.Terminal() {
				return nil // concurrent writer already got there
			}
			return domain.Aborted("error.order.status_conflict", orderID)
		}
		if !domain.CanTransitionOrder(fresh.Status, target, actor.Role) {
			return domain.FailedPrecondition("error.order.invalid_transition",
				fmt.Sprintf("%s->%s", fresh.Status, target))
		}
		return tx.Orders().UpdateStatus(ctx, orderID, fresh.Status, target, change)
	})
	if txErr != nil {
		return txErr
	}

	if target == domain.OrderStatusCancelled {
		s.enqueueCancellation(ctx, orderID)
	}

	go s.notifier.SendNotification(context.WithoutCancel(ctx), order.UserID, "ORDER_STATUS",
		"notification.order.status_changed.title", "notification.order.status_changed.body",
		map[string]string{"status": string(target)}, map[string]string{"order_id": orderID})
	s.activity.LogActivity(ctx, "order.status_changed", map[string]string{
		"order_id": orderID,
		"status":   string(target),
	}, actor.ID)
	return nil
}

// captureOnDelivery finalizes the authorization for the full amount. A
// failure is not retried here; the payment record keeps the error and an
// operator alert fires.
func (s *orderService) captureOnDelivery(ctx context.Context, order *domain.Order) {
	p := order.Payment
	if p.Status != domain.PaymentStatusAuthorized {
		return
	}
	res, err := s.gateway.Finalize(ctx, p.AuthorizationID, p.AuthorizedCents, p.AuthorizedCents, p.Currency)
	if err != nil || !res.Success {
		code := "network_error"
		if res != nil {
			code = res.ErrorCode
		}
		p.GatewayErrorCode = code
		if updErr := s.store.Orders().UpdatePayment(ctx, order.ID, p); updErr != nil {
			logger.Error("Failed to persist capture error", "order_id", order.ID, "error", updErr)
		}
		logger.Alert(ctx, "Delivery capture failed, manual settlement required",
			"order_id", order.ID, "authorization_id", p.AuthorizationID, "error", err, "gateway_code", code)
		return
	}
	settledAt := time.Now()
	p.Status = domain.PaymentStatusCaptured
	p.SettlementID = res.SettlementID
	p.CapturedCents = res.AmountCents
	p.SettledAt = &settledAt
	if err := s.store.Orders().UpdatePayment(ctx, order.ID, p); err != nil {
		logger.Error("Failed to persist capture", "order_id", order.ID, "error", err)
	}
}

// voidOnCancellation releases the hold of an order being cancelled. A failed
// void is flagged on the payment record; the cancellation itself proceeds.
func (s *orderService) voidOnCancellation(ctx context.Context, order *domain.Order) {
	p := order.Payment
	if p.Status != domain.PaymentStatusAuthorized {
		return
	}
	res, err := s.gateway.Void(ctx, p.AuthorizationID)
	if err != nil || !res.Success {
		code := "network_error"
		if res != nil {
			code = res.ErrorCode
		}
		p.GatewayErrorCode = "void_failed:" + code
		s.metrics.OrphanedAuths.Inc()
		logger.Alert(ctx, "Void on cancellation failed, manual reconciliation required",
			"order_id", order.ID, "authorization_id", p.AuthorizationID, "error", err)
	} else {
		p.Status = domain.PaymentStatusVoided
		s.metrics.Compensations.WithLabelValues("voided").Inc()
	}
	if err := s.store.Orders().UpdatePayment(ctx, order.ID, p); err != nil {
		logger.Error("Failed to persist void outcome", "order_id", order.ID, "error", err)
	}
}

// enqueueCancellation hands the committed cancellation to the async worker.
// A publish failure is tolerated: the sweep job re-publishes for cancelled
// orders whose ledger is still pending.
func (s *orderService) enqueueCancellation(ctx context.Context, orderID string) {
	err := s.pub.Publish(ctx, queue.TopicOrderCancellation, orderID,
		queue.OrderCancellationMessage{OrderID: orderID})
	if err != nil {
		logger.Alert(ctx, "Failed to enqueue cancellation side effects, sweep will retry",
			"order_id", orderID, "error", err)
	}
}

func (s *orderService) CancelOrder(ctx context.Context, actor Actor, orderID string, reason string) error {
	return s.UpdateOrderStatus(ctx, actor, orderID, string(domain.OrderStatusCancelled), reason)
}

func (s *orderService) GetOrder(ctx context.Context, actor Actor, orderID string) (*domain.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.ID && !actor.Role.Elevated() {
		return nil, domain.PermissionDenied("error.order.read_forbidden", orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor, page, pageSize int32) ([]domain.Order, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.store.Orders().ListByUser(ctx, actor.ID, page, pageSize)
}

func (s *orderService) dispatchSideEffects(order *domain.Order, actor Actor) {
	ctx := context.Background()
	go s.notifier.SendNotification(ctx, order.UserID, "ORDER_CREATED",
		"notification.order.created.title", "notification.order.created.body",
		map[string]string{"amount": fmt.Sprintf("%d", order.Totals.FinalAmountCents)},
		map[string]string{"order_id": order.ID})
	s.activity.LogActivity(ctx, "order.created", map[string]string{
		"order_id": order.ID,
		"box_id":   fmt.Sprintf("%d", order.BoxID),
	}, actor.ID)
}

func (s *orderService) observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(domain.CodeOf(err))
	}
	s.metrics.Operations.WithLabelValues(operation, outcome).Inc()
	s.metrics.OpLatencyMS.WithLabelValues(operation).Observe(float64(time.Since(start).Milliseconds()))
}
