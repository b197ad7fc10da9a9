package worker

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/payment"
	"kioskops-backend/internal/queue"
	"kioskops-backend/internal/repository"
)

// stubStore exposes only the repositories the worker touches; the rest are
// unreachable from its handlers.
type stubStore struct {
	users    *mockUserRepo
	boxes    *mockBoxRepo
	orders   *mockOrderRepo
	bookings *mockBookingRepo
}

func newStubStore() *stubStore {
	return &stubStore{
		users:    new(mockUserRepo),
		boxes:    new(mockBoxRepo),
		orders:   new(mockOrderRepo),
		bookings: new(mockBookingRepo),
	}
}

func (s *stubStore) Users() repository.UserRepository             { return s.users }
func (s *stubStore) Boxes() repository.BoxRepository              { return s.boxes }
func (s *stubStore) Products() repository.ProductRepository       { return nil }
func (s *stubStore) RentalItems() repository.RentalItemRepository { return nil }
func (s *stubStore) Promos() repository.PromoRepository           { return nil }
func (s *stubStore) Orders() repository.OrderRepository           { return s.orders }
func (s *stubStore) Bookings() repository.BookingRepository       { return s.bookings }

func (s *stubStore) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(s)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) AdjustLoyaltyBalance(ctx context.Context, userID int64, delta int64) error {
	return m.Called(ctx, userID, delta).Error(0)
}

type mockBoxRepo struct{ mock.Mock }

func (m *mockBoxRepo) GetByID(ctx context.Context, id int64) (*domain.Box, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Box), args.Error(1)
}

func (m *mockBoxRepo) GetInventory(ctx context.Context, boxID, itemID int64) (int64, error) {
	args := m.Called(ctx, boxID, itemID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockBoxRepo) AdjustInventory(ctx context.Context, boxID, itemID int64, delta int64) error {
	return m.Called(ctx, boxID, itemID, delta).Error(0)
}

type mockOrderRepo struct{ mock.Mock }

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID int64, page, pageSize int32) ([]domain.Order, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	return nil, 0, args.Error(2)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, change domain.StatusChange) error {
	return m.Called(ctx, id, from, to, change).Error(0)
}

func (m *mockOrderRepo) UpdatePayment(ctx context.Context, id string, payment domain.PaymentRecord) error {
	return m.Called(ctx, id, payment).Error(0)
}

func (m *mockOrderRepo) SetCancellationPhase(ctx context.Context, id string, phase domain.ProcessingPhase, at time.Time) error {
	return m.Called(ctx, id, phase, at).Error(0)
}

func (m *mockOrderRepo) ListCancelledUnprocessed(ctx context.Context, limit int32) ([]domain.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

type mockBookingRepo struct{ mock.Mock }

func (m *mockBookingRepo) Create(ctx context.Context, booking *domain.RentalBooking) error {
	return m.Called(ctx, booking).Error(0)
}

func (m *mockBookingRepo) GetByID(ctx context.Context, id string) (*domain.RentalBooking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentalBooking), args.Error(1)
}

func (m *mockBookingRepo) ListByUser(ctx context.Context, userID int64, page, pageSize int32) ([]domain.RentalBooking, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	return nil, 0, args.Error(2)
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, change domain.StatusChange) error {
	return m.Called(ctx, id, from, to, change).Error(0)
}

func (m *mockBookingRepo) UpdatePayment(ctx context.Context, id string, payment domain.PaymentRecord) error {
	return m.Called(ctx, id, payment).Error(0)
}

func (m *mockBookingRepo) MarkPickedUp(ctx context.Context, id string, courierID int64, at time.Time, change domain.StatusChange) error {
	return m.Called(ctx, id, courierID, at, change).Error(0)
}

func (m *mockBookingRepo) MarkReturned(ctx context.Context, id string, returnBoxID, courierID int64, at time.Time, condition domain.ReturnCondition, notes string, change domain.StatusChange) error {
	return m.Called(ctx, id, returnBoxID, courierID, at, condition, notes, change).Error(0)
}

func (m *mockBookingRepo) RecordSettlement(ctx context.Context, id string, charge domain.RentalCharge, payment domain.PaymentRecord, phase domain.ProcessingPhase, at time.Time, from, to domain.BookingStatus, change domain.StatusChange) error {
	return m.Called(ctx, id, charge, payment, phase, at, from, to, change).Error(0)
}

func (m *mockBookingRepo) SetDepositPhase(ctx context.Context, id string, phase domain.ProcessingPhase, at time.Time) error {
	return m.Called(ctx, id, phase, at).Error(0)
}

func (m *mockBookingRepo) ListReturnedUnprocessed(ctx context.Context, limit int32) ([]domain.RentalBooking, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RentalBooking), args.Error(1)
}

func (m *mockBookingRepo) ListOverdue(ctx context.Context, now time.Time, limit int32) ([]domain.RentalBooking, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RentalBooking), args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) Authorize(ctx context.Context, req payment.AuthorizeRequest) (*payment.AuthorizeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.AuthorizeResult), args.Error(1)
}

func (m *mockGateway) Void(ctx context.Context, authorizationID string) (*payment.VoidResult, error) {
	args := m.Called(ctx, authorizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.VoidResult), args.Error(1)
}

func (m *mockGateway) Finalize(ctx context.Context, authorizationID string, finalCents, originalCents int64, currency string) (*payment.FinalizeResult, error) {
	args := m.Called(ctx, authorizationID, finalCents, originalCents, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.FinalizeResult), args.Error(1)
}

// chanConsumer feeds canned messages to Run and records acks and nacks
type chanConsumer struct {
	messages chan *queue.Message
	acked    chan *queue.Message
	nacked   chan *queue.Message
}

func newChanConsumer(buffer int) *chanConsumer {
	return &chanConsumer{
		messages: make(chan *queue.Message, buffer),
		acked:    make(chan *queue.Message, buffer),
		nacked:   make(chan *queue.Message, buffer),
	}
}

func (c *chanConsumer) Receive(ctx context.Context) (*queue.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-c.messages:
		return msg, nil
	}
}

func (c *chanConsumer) Ack(ctx context.Context, msg *queue.Message) error {
	c.acked <- msg
	return nil
}

func (c *chanConsumer) Nack(ctx context.Context, msg *queue.Message) error {
	c.nacked <- msg
	return nil
}

func (c *chanConsumer) Close() error { return nil }
