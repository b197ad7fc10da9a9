package postgres

import (
	"context"
	"database/sql"
	"errors"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/logger"
	"kioskops-backend/internal/repository"

	"github.com/lib/pq"
)

// txMaxAttempts bounds the serialization-conflict retry loop
const txMaxAttempts = 3

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// same repository code serves both direct and transaction-scoped access.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db   *sql.DB // nil on a transaction-scoped store
	dbtx DBTX

	users       repository.UserRepository
	boxes       repository.BoxRepository
	products    repository.ProductRepository
	rentalItems repository.RentalItemRepository
	promos      repository.PromoRepository
	orders      repository.OrderRepository
	bookings    repository.BookingRepository
}

func NewStore(db *sql.DB) *Store {
	s := newWithDBTX(db)
	s.db = db
	return s
}

func newWithDBTX(dbtx DBTX) *Store {
	return &Store{
		dbtx:        dbtx,
		users:       &userRepository{db: dbtx},
		boxes:       &boxRepository{db: dbtx},
		products:    &productRepository{db: dbtx},
		rentalItems: &rentalItemRepository{db: dbtx},
		promos:      &promoRepository{db: dbtx},
		orders:      &orderRepository{db: dbtx},
		bookings:    &bookingRepository{db: dbtx},
	}
}

func (s *Store) Users() repository.UserRepository             { return s.users }
func (s *Store) Boxes() repository.BoxRepository              { return s.boxes }
func (s *Store) Products() repository.ProductRepository       { return s.products }
func (s *Store) RentalItems() repository.RentalItemRepository { return s.rentalItems }
func (s *Store) Promos() repository.PromoRepository           { return s.promos }
func (s *Store) Orders() repository.OrderRepository           { return s.orders }
func (s *Store) Bookings() repository.BookingRepository       { return s.bookings }

// ExecTx runs fn in a serializable transaction. Serialization conflicts
// (SQLSTATE 40001, deadlock 40P01) abort and re-run the whole function, so fn
// must be free of external side effects. Past the retry budget the conflict
// surfaces as domain.Aborted.
func (s *Store) ExecTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.db == nil {
		// Already inside a transaction; run against the same scope.
		return fn(s)
	}

	var lastErr error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}

		err = fn(newWithDBTX(tx))
		if err != nil {
			_ = tx.Rollback()
			if isSerializationFailure(err) {
				lastErr = err
				logger.Debug("Transaction conflict, retrying", "attempt", attempt)
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				logger.Debug("Commit conflict, retrying", "attempt", attempt)
				continue
			}
			return err
		}
		return nil
	}
	return domain.Aborted("error.tx.conflict", "").WithCause(lastErr)
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
