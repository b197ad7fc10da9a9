package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/payment"
	"kioskops-backend/internal/queue"
	"kioskops-backend/internal/repository"
)

// MockStore bundles the repository mocks behind the Store interface. ExecTx
// runs its function against the same mocks, so per-repo expectations cover
// both direct and transactional access.
type MockStore struct {
	UserRepo    *MockUserRepo
	BoxRepo     *MockBoxRepo
	ProductRepo *MockProductRepo
	ItemRepo    *MockRentalItemRepo
	PromoRepo   *MockPromoRepo
	OrderRepo   *MockOrderRepo
	BookingRepo *MockBookingRepo
}

func NewMockStore() *MockStore {
	return &MockStore{
		UserRepo:    new(MockUserRepo),
		BoxRepo:     new(MockBoxRepo),
		ProductRepo: new(MockProductRepo),
		ItemRepo:    new(MockRentalItemRepo),
		PromoRepo:   new(MockPromoRepo),
		OrderRepo:   new(MockOrderRepo),
		BookingRepo: new(MockBookingRepo),
	}
}

func (m *MockStore) Users() repository.UserRepository             { return m.UserRepo }
func (m *MockStore) Boxes() repository.BoxRepository              { return m.BoxRepo }
func (m *MockStore) Products() repository.ProductRepository       { return m.ProductRepo }
func (m *MockStore) RentalItems() repository.RentalItemRepository { return m.ItemRepo }
func (m *MockStore) Promos() repository.PromoRepository           { return m.PromoRepo }
func (m *MockStore) Orders() repository.OrderRepository           { return m.OrderRepo }
func (m *MockStore) Bookings() repository.BookingRepository       { return m.BookingRepo }

func (m *MockStore) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(m)
}

func (m *MockStore) AssertExpectations(t mock.TestingT) {
	m.UserRepo.AssertExpectations(t)
	m.BoxRepo.AssertExpectations(t)
	m.ProductRepo.AssertExpectations(t)
	m.ItemRepo.AssertExpectations(t)
	m.PromoRepo.AssertExpectations(t)
	m.OrderRepo.AssertExpectations(t)
	m.BookingRepo.AssertExpectations(t)
}

type MockUserRepo struct{ mock.Mock }

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) AdjustLoyaltyBalance(ctx context.Context, userID int64, delta int64) error {
	return m.Called(ctx, userID, delta).Error(0)
}

type MockBoxRepo struct{ mock.Mock }

func (m *MockBoxRepo) GetByID(ctx context.Context, id int64) (*domain.Box, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Box), args.Error(1)
}

func (m *MockBoxRepo) GetInventory(ctx context.Context, boxID, itemID int64) (int64, error) {
	args := m.Called(ctx, boxID, itemID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBoxRepo) AdjustInventory(ctx context.Context, boxID, itemID int64, delta int64) error {
	return m.Called(ctx, boxID, itemID, delta).Error(0)
}

type MockProductRepo struct{ mock.Mock }

func (m *MockProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepo) GetManyByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

type MockRentalItemRepo struct{ mock.Mock }

func (m *MockRentalItemRepo) GetByID(ctx context.Context, id int64) (*domain.RentalItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentalItem), args.Error(1)
}

type MockPromoRepo struct{ mock.Mock }

func (m *MockPromoRepo) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PromoCode), args.Error(1)
}

func (m *MockPromoRepo) ConsumeUse(ctx context.Context, code string, now time.Time) error {
	return m.Called(ctx, code, now).Error(0)
}

type MockOrderRepo struct{ mock.Mock }

func (m *MockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepo) ListByUser(ctx context.Context, userID int64, page, pageSize int32) ([]domain.Order, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int32), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Get(1).(int32), args.Error(2)
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, change domain.StatusChange) error {
	return m.Called(ctx, id, from, to, change).Error(0)
}

func (m *MockOrderRepo) UpdatePayment(ctx context.Context, id string, payment domain.PaymentRecord) error {
	return m.Called(ctx, id, payment).Error(0)
}

func (m *MockOrderRepo) SetCancellationPhase(ctx context.Context, id string, phase domain.ProcessingPhase, at time.Time) error {
	return m.Called(ctx, id, phase, at).Error(0)
}

func (m *MockOrderRepo) ListCancelledUnprocessed(ctx context.Context, limit int32) ([]domain.Order, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

type MockBookingRepo struct{ mock.Mock }

func (m *MockBookingRepo) Create(ctx context.Context, booking *domain.RentalBooking) error {
	return m.Called(ctx, booking).Error(0)
}

func (m *MockBookingRepo) GetByID(ctx context.Context, id string) (*domain.RentalBooking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RentalBooking), args.Error(1)
}

func (m *MockBookingRepo) ListByUser(ctx context.Context, userID int64, page, pageSize int32) ([]domain.RentalBooking, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int32), args.Error(2)
	}
	return args.Get(0).([]domain.RentalBooking), args.Get(1).(int32), args.Error(2)
}

func (m *MockBookingRepo) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, change domain.StatusChange) error {
	return m.Called(ctx, id, from, to, change).Error(0)
}

func (m *MockBookingRepo) UpdatePayment(ctx context.Context, id string, payment domain.PaymentRecord) error {
	return m.Called(ctx, id, payment).Error(0)
}

func (m *MockBookingRepo) MarkPickedUp(ctx context.Context, id string, courierID int64, at time.Time, change domain.StatusChange) error {
	return m.Called(ctx, id, courierID, at, change).Error(0)
}

func (m *MockBookingRepo) MarkReturned(ctx context.Context, id string, returnBoxID, courierID int64, at time.Time, condition domain.ReturnCondition, notes string, change domain.StatusChange) error {
	return m.Called(ctx, id, returnBoxID, courierID, at, condition, notes, change).Error(0)
}

func (m *MockBookingRepo) RecordSettlement(ctx context.Context, id string, charge domain.RentalCharge, payment domain.PaymentRecord, phase domain.ProcessingPhase, at time.Time, from, to domain.BookingStatus, change domain.StatusChange) error {
	return m.Called(ctx, id, charge, payment, phase, at, from, to, change).Error(0)
}

func (m *MockBookingRepo) SetDepositPhase(ctx context.Context, id string, phase domain.ProcessingPhase, at time.Time) error {
	return m.Called(ctx, id, phase, at).Error(0)
}

func (m *MockBookingRepo) ListReturnedUnprocessed(ctx context.Context, limit int32) ([]domain.RentalBooking, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RentalBooking), args.Error(1)
}

func (m *MockBookingRepo) ListOverdue(ctx context.Context, now time.Time, limit int32) ([]domain.RentalBooking, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RentalBooking), args.Error(1)
}

type MockGateway struct{ mock.Mock }

func (m *MockGateway) Authorize(ctx context.Context, req payment.AuthorizeRequest) (*payment.AuthorizeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.AuthorizeResult), args.Error(1)
}

func (m *MockGateway) Void(ctx context.Context, authorizationID string) (*payment.VoidResult, error) {
	args := m.Called(ctx, authorizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.VoidResult), args.Error(1)
}

func (m *MockGateway) Finalize(ctx context.Context, authorizationID string, finalCents, originalCents int64, currency string) (*payment.FinalizeResult, error) {
	args := m.Called(ctx, authorizationID, finalCents, originalCents, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.FinalizeResult), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	return m.Called(ctx, topic, key, payload).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

var _ queue.Publisher = (*MockPublisher)(nil)
var _ repository.Store = (*MockStore)(nil)
var _ payment.Gateway = (*MockGateway)(nil)

type denyAllChecker struct{}

func (denyAllChecker) CheckPermission(ctx context.Context, actorID int64, role domain.UserRole, permissionKey string, entityID string) (bool, error) {
	return false, nil
}
