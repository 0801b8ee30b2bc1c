package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalid is returned when a record breaks a data rule the schema cannot express.
var ErrInvalid = errors.New("invalid record")

// Repository defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Repository interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// Stats returns the counters shown to the administrator.
	Stats(ctx context.Context) (*Stats, error)

	CreateAdvertisement(ctx context.Context, ad *Advertisement) error
	GetAdvertisement(ctx context.Context, id int64) (*Advertisement, error)
	ListAdvertisements(ctx context.Context, page Page) ([]*Advertisement, int, error)
	// ListActiveAdvertisements returns every advertisement with status active.
	ListActiveAdvertisements(ctx context.Context) ([]*Advertisement, error)
	UpdateAdvertisement(ctx context.Context, ad *Advertisement) error
	SetAdvertisementStatus(ctx context.Context, id int64, status int) error
	MarkAdvertisementDelivered(ctx context.Context, id int64, at time.Time) error
	DeleteAdvertisement(ctx context.Context, id int64) error

	CreateStore(ctx context.Context, store *Store) error
	GetStore(ctx context.Context, id int64) (*Store, error)
	ListStores(ctx context.Context, page Page) ([]*Store, int, error)
	// ListStoresByMenuButton returns active stores under a menu button, ordered by sort_order.
	ListStoresByMenuButton(ctx context.Context, menuButtonID int64, page Page) ([]*Store, int, error)
	// ListRecommendedStores returns active stores flagged as recommended.
	ListRecommendedStores(ctx context.Context, page Page) ([]*Store, int, error)
	UpdateStore(ctx context.Context, store *Store) error
	DeleteStore(ctx context.Context, id int64) error

	CreateMenuButton(ctx context.Context, button *MenuButton) error
	GetMenuButton(ctx context.Context, id int64) (*MenuButton, error)
	// ListMenuButtons returns the active children of parentID (root buttons when nil).
	ListMenuButtons(ctx context.Context, parentID *int64) ([]*MenuButton, error)
	// ListAllMenuButtons returns every button regardless of status.
	ListAllMenuButtons(ctx context.Context) ([]*MenuButton, error)
	UpdateMenuButton(ctx context.Context, button *MenuButton) error
	DeleteMenuButton(ctx context.Context, id int64) error

	CreatePinMessage(ctx context.Context, pin *PinMessage) error
	GetPinMessage(ctx context.Context, id int64) (*PinMessage, error)
	// GetActivePinMessage returns the most recently updated active pin message.
	GetActivePinMessage(ctx context.Context) (*PinMessage, error)
	ListPinMessages(ctx context.Context, page Page) ([]*PinMessage, int, error)
	UpdatePinMessage(ctx context.Context, pin *PinMessage) error
	DeletePinMessage(ctx context.Context, id int64) error

	// UpsertChat registers a chat or reactivates it.
	UpsertChat(ctx context.Context, chatID int64, name string) error
	DeactivateChat(ctx context.Context, chatID int64) error
	ListActiveChatIDs(ctx context.Context) ([]int64, error)
	ListChats(ctx context.Context, page Page) ([]*Chat, int, error)

	InsertJob(ctx context.Context, job *Job) error
	// ReserveDueJobs atomically reserves up to limit unreserved jobs of the
	// given queues whose available_at is not after now, incrementing attempts.
	ReserveDueJobs(ctx context.Context, queues []string, now int64, limit int) ([]*Job, error)
	DeleteJob(ctx context.Context, id int64) error
	// ReleaseJob clears the reservation and makes the job available again at availableAt.
	ReleaseJob(ctx context.Context, id int64, availableAt int64) error
	// FailJob moves a job to failed_jobs.
	FailJob(ctx context.Context, job *Job, reason string, failedAt int64) error
	// CountPendingJobs counts unreserved jobs of kind for an advertisement.
	CountPendingJobs(ctx context.Context, advertisementID int64, kind string) (int, error)
	// CountQueuedJobs counts jobs of kind for an advertisement, reserved or not.
	CountQueuedJobs(ctx context.Context, advertisementID int64, kind string) (int, error)
	// DeleteJobsForAdvertisement deletes every unreserved job of an advertisement.
	DeleteJobsForAdvertisement(ctx context.Context, advertisementID int64) (int64, error)
	// ReleaseStaleJobs clears reservations taken before reservedBefore.
	ReleaseStaleJobs(ctx context.Context, reservedBefore int64) (int64, error)
	ListJobs(ctx context.Context, page Page) ([]*Job, int, error)
	ListFailedJobs(ctx context.Context, page Page) ([]*FailedJob, int, error)
	PruneFailedJobs(ctx context.Context, failedBefore int64) (int64, error)

	InsertDeliveryLog(ctx context.Context, log *DeliveryLog) error
	ListDeliveryLogs(ctx context.Context, advertisementID int64, page Page) ([]*DeliveryLog, int, error)
	DeliveryStats(ctx context.Context, advertisementID int64) (*DeliveryStats, error)
}

// sqlxRepository provides an implementation of the Repository interface using sqlx.
type sqlxRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewRepository creates a new Repository implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewRepository(db *sqlx.DB, logger *slog.Logger) Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxRepository{
		db:     db,
		logger: logger.With("component", "repository"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (r *sqlxRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// isContextErr reports whether err comes from a cancelled or expired context.
func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// queryErr maps a query error to the repository error convention.
func (r *sqlxRepository) queryErr(ctx context.Context, err error, op string, args ...any) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isContextErr(err):
		r.logger.WarnContext(ctx, "Context timeout or cancellation during "+op, append(args, "error", err)...)
		return err
	default:
		r.logger.ErrorContext(ctx, "Database error during "+op, append(args, "error", err)...)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// withTx runs fn in a transaction, rolling back unless fn and the commit succeed.
func (r *sqlxRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					r.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	// Successfully committed, set tx to nil to avoid rollback
	tx = nil
	return nil
}

// execAffecting runs a write and returns ErrNotFound when no row matched.
func (r *sqlxRepository) execAffecting(ctx context.Context, op string, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.queryErr(ctx, err, op)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		r.logger.WarnContext(ctx, "Could not get affected row count", "op", op, "error", err)
		return nil
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// namedInsert runs an INSERT and returns the generated row ID.
func (r *sqlxRepository) namedInsert(ctx context.Context, op string, query string, arg any) (int64, error) {
	result, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, r.queryErr(ctx, err, op)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id for %s: %w", op, err)
	}
	return id, nil
}

// namedUpdate runs an UPDATE and returns ErrNotFound when no row matched.
func (r *sqlxRepository) namedUpdate(ctx context.Context, op string, query string, arg any) error {
	result, err := r.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return r.queryErr(ctx, err, op)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// count runs a COUNT(*) query.
func (r *sqlxRepository) count(ctx context.Context, op string, query string, args ...any) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, r.queryErr(ctx, err, op)
	}
	return n, nil
}
