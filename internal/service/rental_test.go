package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/external"
	"kioskops-backend/internal/payment"
	"kioskops-backend/internal/queue"
)

func newRentalService(store *MockStore, gateway *MockGateway, pub *MockPublisher) RentalService {
	return NewRentalService(store, gateway, pub,
		external.NewAllowAllChecker(), external.NewLogNotifier(), external.NewLogActivityLogger())
}

func activeItem() *domain.RentalItem {
	return &domain.RentalItem{ID: 21, Active: true, DepositCents: 5000, BaseFeeCents: 1000,
		Currency: "EUR", Names: map[string]string{"en": "Drill"}}
}

func TestCreateBooking_HappyPath(t *testing.T) {
	store := NewMockStore()
	gateway := new(MockGateway)
	svc := newRentalService(store, gateway, new(MockPublisher))
	expected := time.Now().Add(48 * time.Hour)

	store.UserRepo.On("GetByID", mock.Anything, int64(7)).Return(activeUser(), nil)
	store.BoxRepo.On("GetByID", mock.Anything, int64(3)).Return(activeBox(), nil)
	store.ItemRepo.On("GetByID", mock.Anything, int64(21)).Return(activeItem(), nil)
	gateway.On("Authorize", mock.Anything, mock.MatchedBy(func(req payment.AuthorizeRequest) bool {
		return req.AmountCents == 5000 && req.Currency == "EUR"
	})).Return(&payment.AuthorizeResult{Success: true, AuthorizationID: "auth-d1"}, nil)
	store.BoxRepo.On("AdjustInventory", mock.Anything, int64(3), int64(21), int64(-1)).Return(nil)
	store.BookingRepo.On("Create", mock.Anything, mock.MatchedBy(func(b *domain.RentalBooking) bool {
		return b.Status == domain.BookingStatusAwaitingPickup &&
			b.Payment.Status == domain.PaymentStatusAuthorized &&
			b.DepositCents == 5000 && b.BaseFeeCents == 1000 &&
			b.DepositLedger.Phase == domain.PhasePending
	})).Return(nil)

	booking, action, err := svc.CreateBooking(context.Background(), Actor{ID: 7, Role: domain.UserRoleCustomer},
		CreateBookingInput{ItemID: 21, PickupBoxID: 3, ExpectedReturn: &expected})
	assert.NoError(t, err)
	assert.Nil(t, action)
	assert.NotNil(t, booking)
	assert.Equal(t, "Drill", booking.ItemName)
	store.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestCreateBooking_RequiresActionCommitsNothing(t *testing.T) {
	store := NewMockStore()
	gateway := new(MockGateway)
	svc := newRentalService(store, gateway, new(MockPublisher))

	store.UserRepo.On("GetByID", mock.Anything, int64(7)).Return(activeUser(), nil)
	store.BoxRepo.On("GetByID", mock.Anything, int64(3)).Return(activeBox(), nil)
	store.ItemRepo.On("GetByID", mock.Anything, int64(21)).Return(activeItem(), nil)
	gateway.On("Authorize", mock.Anything, mock.Anything).
		Return(&payment.AuthorizeResult{RequiresAction: true, ActionURL: "https://pay.example/3ds"}, nil)

	booking, action, err := svc.CreateBooking(context.Background(), Actor{ID: 7, Role: domain.UserRoleCustomer},
		CreateBookingInput{ItemID: 21, PickupBoxID: 3})
	assert.NoError(t, err)
	assert.Nil(t, booking)
	assert.NotNil(t, action)
	assert.True(t, action.RequiresAction)
	assert.Equal(t, "https://pay.example/3ds", action.ActionURL)
	store.BookingRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	store.BoxRepo.AssertNotCalled(t, "AdjustInventory", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBooking_CompensatesDepositOnCommitFailure(t *testing.T) {
	store := NewMockStore()
	gateway := new(MockGateway)
	svc := newRentalService(store, gateway, new(MockPublisher))

	store.UserRepo.On("GetByID", mock.Anything, int64(7)).Return(activeUser(), nil)
	store.BoxRepo.On("GetByID", mock.Anything, int64(3)).Return(activeBox(), nil)
	store.ItemRepo.On("GetByID", mock.Anything, int64(21)).Return(activeItem(), nil)
	gateway.On("Authorize", mock.Anything, mock.Anything).
		Return(&payment.AuthorizeResult{Success: true, AuthorizationID: "auth-d2"}, nil)
	store.BoxRepo.On("AdjustInventory", mock.Anything, int64(3), int64(21), int64(-1)).
		Return(domain.ResourceExhausted("error.box.out_of_stock", "3"))
	gateway.On("Void", mock.Anything, "auth-d2").Return(&payment.VoidResult{Success: true}, nil)

	_, _, err := svc.CreateBooking(context.Background(), Actor{ID: 7, Role: domain.UserRoleCustomer},
		CreateBookingInput{ItemID: 21, PickupBoxID: 3})
	assert.Equal(t, domain.ErrResourceExhausted, domain.CodeOf(err))
	gateway.AssertExpectations(t)
}

func TestCreateBooking_ExpectedReturnInPast(t *testing.T) {
	svc := newRentalService(NewMockStore(), new(MockGateway), new(MockPublisher))
	past := time.Now().Add(-time.Hour)

	_, _, err := svc.CreateBooking(context.Background(), Actor{ID: 7, Role: domain.UserRoleCustomer},
		CreateBookingInput{ItemID: 21, PickupBoxID: 3, ExpectedReturn: &past})
	assert.Equal(t, domain.ErrInvalidArgument, domain.CodeOf(err))
}

func TestConfirmPickup(t *testing.T) {
	actor := Actor{ID: 4, Role: domain.UserRoleCourier}

	t.Run("Success", func(t *testing.T) {
		store := NewMockStore()
		svc := newRentalService(store, new(MockGateway), new(MockPublisher))
		booking := &domain.RentalBooking{ID: "b-1", UserID: 7, ItemID: 21, PickupBoxID: 3,
			Status: domain.BookingStatusAwaitingPickup}
		store.BookingRepo.On("GetByID", mock.Anything, "b-1").Return(booking, nil)
		store.BookingRepo.On("MarkPickedUp", mock.Anything, "b-1", int64(4), mock.Anything, mock.Anything).Return(nil)

		assert.NoError(t, svc.ConfirmPickup(context.Background(), actor, "b-1"))
		store.AssertExpectations(t)
	})

	t.Run("WrongState", func(t *testing.T) {
		store := NewMockStore()
		svc := newRentalService(store, new(MockGateway), new(MockPublisher))
		booking := &domain.RentalBooking{ID: "b-1", UserID: 7, Status: domain.BookingStatusCompleted}
		store.BookingRepo.On("GetByID", mock.Anything, "b-1").Return(booking, nil)

		err := svc.ConfirmPickup(context.Background(), actor, "b-1")
		assert.Equal(t, domain.ErrFailedPrecondition, domain.CodeOf(err))
	})
}

func TestConfirmReturn(t *testing.T) {
	actor := Actor{ID: 4, Role: domain.UserRoleCourier}

	t.Run("RestoresInventoryAndEnqueues", func(t *testing.T) {
		store := NewMockStore()
		pub := new(MockPublisher)
		svc := newRentalService(store, new(MockGateway), pub)
		booking := &domain.RentalBooking{ID: "b-2", UserID: 7, ItemID: 21, PickupBoxID: 3,
			Status: domain.BookingStatusPickedUp}
		store.BookingRepo.On("GetByID", mock.Anything, "b-2").Return(booking, nil)
		store.BoxRepo.On("GetByID", mock.Anything, int64(5)).Return(&domain.Box{ID: 5, Active: true, Currency: "EUR"}, nil)
		store.BookingRepo.On("MarkReturned", mock.Anything, "b-2", int64(5), int64(4), mock.Anything,
			domain.ReturnConditionDirty, "mud on handle", mock.Anything).Return(nil)
		store.BoxRepo.On("AdjustInventory", mock.Anything, int64(5), int64(21), int64(1)).Return(nil)
		pub.On("Publish", mock.Anything, queue.TopicRentalDeposit, "b-2",
			queue.RentalDepositMessage{BookingID: "b-2"}).Return(nil)

		err := svc.ConfirmReturn(context.Background(), actor, "b-2", 5, domain.ReturnConditionDirty, "mud on handle")
		assert.NoError(t, err)
		store.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("UnknownCondition", func(t *testing.T) {
		svc := newRentalService(NewMockStore(), new(MockGateway), new(MockPublisher))
		err := svc.ConfirmReturn(context.Background(), actor, "b-2", 5, domain.ReturnCondition("BROKEN"), "")
		assert.Equal(t, domain.ErrInvalidArgument, domain.CodeOf(err))
	})

	t.Run("PublishFailureTolerated", func(t *testing.T) {
		store := NewMockStore()
		pub := new(MockPublisher)
		svc := newRentalService(store, new(MockGateway), pub)
		booking := &domain.RentalBooking{ID: "b-2", UserID: 7, ItemID: 21, PickupBoxID: 3,
			Status: domain.BookingStatusPickedUp}
		store.BookingRepo.On("GetByID", mock.Anything, "b-2").Return(booking, nil)
		store.BoxRepo.On("GetByID", mock.Anything, int64(5)).Return(&domain.Box{ID: 5, Active: true, Currency: "EUR"}, nil)
		store.BookingRepo.On("MarkReturned", mock.Anything, "b-2", int64(5), int64(4), mock.Anything,
			domain.ReturnConditionGood, "", mock.Anything).Return(nil)
		store.BoxRepo.On("AdjustInventory", mock.Anything, int64(5), int64(21), int64(1)).Return(nil)
		pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("broker unavailable"))

		err := svc.ConfirmReturn(context.Background(), actor, "b-2", 5, domain.ReturnConditionGood, "")
		assert.NoError(t, err) // the sweep job re-publishes later
	})
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("VoidsDepositAndRestoresInventory", func(t *testing.T) {
		store := NewMockStore()
		gateway := new(MockGateway)
		svc := newRentalService(store, gateway, new(MockPublisher))
		booking := &domain.RentalBooking{
			ID: "b-3", UserID: 7, ItemID: 21, PickupBoxID: 3,
			Status: domain.BookingStatusAwaitingPickup,
			Payment: domain.PaymentRecord{Status: domain.PaymentStatusAuthorized,
				AuthorizationID: "auth-d3", AuthorizedCents: 5000, Currency: "EUR"},
		}
		store.BookingRepo.On("GetByID", mock.Anything, "b-3").Return(booking, nil)
		gateway.On("Void", mock.Anything, "auth-d3").Return(&payment.VoidResult{Success: true}, nil)
		store.BookingRepo.On("UpdatePayment", mock.Anything, "b-3", mock.MatchedBy(func(p domain.PaymentRecord) bool {
			return p.Status == domain.PaymentStatusVoided
		})).Return(nil)
		store.BookingRepo.On("UpdateStatus", mock.Anything, "b-3",
			domain.BookingStatusAwaitingPickup, domain.BookingStatusCancelled, mock.Anything).Return(nil)
		store.BoxRepo.On("AdjustInventory", mock.Anything, int64(3), int64(21), int64(1)).Return(nil)

		err := svc.CancelBooking(ctx, Actor{ID: 7, Role: domain.UserRoleCustomer}, "b-3", "plans changed")
		assert.NoError(t, err)
		store.AssertExpectations(t)
		gateway.AssertExpectations(t)
	})

	t.Run("VoidFailureFlagsAndProceeds", func(t *testing.T) {
		store := NewMockStore()
		gateway := new(MockGateway)
		svc := newRentalService(store, gateway, new(MockPublisher))
		booking := &domain.RentalBooking{
			ID: "b-4", UserID: 7, ItemID: 21, PickupBoxID: 3,
			Status: domain.BookingStatusAwaitingPickup,
			Payment: domain.PaymentRecord{Status: domain.PaymentStatusAuthorized,
				AuthorizationID: "auth-d4", AuthorizedCents: 5000, Currency: "EUR"},
		}
		store.BookingRepo.On("GetByID", mock.Anything, "b-4").Return(booking, nil)
		gateway.On("Void", mock.Anything, "auth-d4").
			Return(&payment.VoidResult{Success: false, ErrorCode: "already_settled"}, nil)
		store.BookingRepo.On("UpdatePayment", mock.Anything, "b-4", mock.MatchedBy(func(p domain.PaymentRecord) bool {
			return p.GatewayErrorCode == "void_failed:already_settled" &&
				p.Status == domain.PaymentStatusAuthorized
		})).Return(nil)
		store.BookingRepo.On("UpdateStatus", mock.Anything, "b-4",
			domain.BookingStatusAwaitingPickup, domain.BookingStatusCancelled, mock.Anything).Return(nil)
		store.BoxRepo.On("AdjustInventory", mock.Anything, int64(3), int64(21), int64(1)).Return(nil)

		err := svc.CancelBooking(ctx, Actor{ID: 7, Role: domain.UserRoleCustomer}, "b-4", "")
		assert.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("AlreadyCancelledIsNoOp", func(t *testing.T) {
		store := NewMockStore()
		svc := newRentalService(store, new(MockGateway), new(MockPublisher))
		booking := &domain.RentalBooking{ID: "b-5", UserID: 7, Status: domain.BookingStatusCancelled}
		store.BookingRepo.On("GetByID", mock.Anything, "b-5").Return(booking, nil)

		err := svc.CancelBooking(ctx, Actor{ID: 7, Role: domain.UserRoleCustomer}, "b-5", "")
		assert.NoError(t, err)
		store.BookingRepo.AssertNotCalled(t, "UpdateStatus",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PickedUpCannotBeCancelled", func(t *testing.T) {
		store := NewMockStore()
		svc := newRentalService(store, new(MockGateway), new(MockPublisher))
		booking := &domain.RentalBooking{ID: "b-6", UserID: 7, Status: domain.BookingStatusPickedUp}
		store.BookingRepo.On("GetByID", mock.Anything, "b-6").Return(booking, nil)

		err := svc.CancelBooking(ctx, Actor{ID: 7, Role: domain.UserRoleCustomer}, "b-6", "")
		assert.Equal(t, domain.ErrFailedPrecondition, domain.CodeOf(err))
	})

	t.Run("StrangerForbidden", func(t *testing.T) {
		store := NewMockStore()
		svc := newRentalService(store, new(MockGateway), new(MockPublisher))
		booking := &domain.RentalBooking{ID: "b-7", UserID: 7, Status: domain.BookingStatusAwaitingPickup}
		store.BookingRepo.On("GetByID", mock.Anything, "b-7").Return(booking, nil)

		err := svc.CancelBooking(ctx, Actor{ID: 8, Role: domain.UserRoleCustomer}, "b-7", "")
		assert.Equal(t, domain.ErrPermissionDenied, domain.CodeOf(err))
	})
}
