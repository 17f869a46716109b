package uow

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"storefront/internal/domain/order"
	"storefront/internal/infra"
	"storefront/internal/infra/db"
	"storefront/internal/infra/repository"
	"storefront/internal/pkg/errs"
	"storefront/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgErrCodeSerializationFailure = "40001"
	pgErrCodeDeadlockDetected     = "40P01"
)

var (
	errTransactionBegin   = errs.New("failed to begin transaction")
	errTransactionCommit  = errs.New("failed to commit transaction")
	errMaxRetriesExceeded = errs.New("transaction failed after max retries")
)

type PostgresUoW struct {
	pool *pgxpool.Pool
}

func NewPostgresUoW(pool *pgxpool.Pool) shared.UnitOfWork {
	return &PostgresUoW{pool: pool}
}

// ReadCommitted prevents dirty reads while allowing concurrent writes
func (u *PostgresUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return u.runInTxWithOptions(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (u *PostgresUoW) Reads() shared.CommandReads {
	return &commandReads{dbtx: u.pool}
}

// Avoids defer accumulation in retry loops to prevent connection leaks
func (u *PostgresUoW) runInTxWithOptions(ctx context.Context, options pgx.TxOptions, fn func(ctx context.Context, tx shared.Tx) error) error {
	const maxRetries = 3
	base := 100 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		pgxTx, err := u.pool.BeginTx(ctx, options)
		if err != nil {
			return errs.Mark(err, errTransactionBegin)
		}

		tx := &pgTx{dbtx: pgxTx}

		err = fn(ctx, tx)
		if err == nil {
			if err = pgxTx.Commit(ctx); err == nil {
				return nil
			}
			err = errs.Mark(err, errTransactionCommit)
		}

		if rollbackErr := pgxTx.Rollback(ctx); rollbackErr != nil {
			if !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				slog.Warn("rollback failed", "attempt", attempt+1, "error", rollbackErr.Error())
			}
		}

		if !shouldRetry(err, attempt, maxRetries) {
			if attempt == maxRetries {
				slog.Error("transaction failed after max retries",
					"attempts", attempt+1,
					"error", err.Error())
				return errs.Mark(err, errMaxRetriesExceeded)
			}
			return err
		}

		waitTime := calculateBackoff(attempt, base)

		slog.Warn("retrying transaction due to retryable error",
			"attempt", attempt+1,
			"wait_ms", waitTime.Milliseconds(),
			"error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return errMaxRetriesExceeded
}

func shouldRetry(err error, attempt, maxRetries int) bool {
	return isRetryableError(err) && attempt < maxRetries
}

func calculateBackoff(attempt int, base time.Duration) time.Duration {
	waitTime := time.Duration(1<<attempt) * base
	jitter := cryptoRandInt63n(int64(waitTime / 5))
	return waitTime + time.Duration(jitter)
}

func cryptoRandInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Fallback to a simple calculation if crypto/rand fails
		return 0
	}
	// Safe conversion: mask high bit to ensure positive int64
	uval := binary.BigEndian.Uint64(buf[:]) & 0x7FFFFFFFFFFFFFFF
	// #nosec G115 -- Intentionally safe conversion after masking
	return int64(uval) % n
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgErrCodeSerializationFailure, pgErrCodeDeadlockDetected:
		return true
	default:
		return false
	}
}

type pgTx struct {
	dbtx db.DBTX

	// Lazy-initialized repositories
	orderRepo   shared.OrderRepository
	productRepo shared.ProductRepository
	cartRepo    shared.CartRepository
}

func (t *pgTx) Orders() shared.OrderRepository {
	if t.orderRepo == nil {
		t.orderRepo = &txOrders{dbtx: t.dbtx, repo: repository.NewOrderRepository(t.dbtx)}
	}
	return t.orderRepo
}

func (t *pgTx) Products() shared.ProductRepository {
	if t.productRepo == nil {
		t.productRepo = &txProducts{dbtx: t.dbtx, repo: repository.NewProductRepository(t.dbtx)}
	}
	return t.productRepo
}

func (t *pgTx) Carts() shared.CartRepository {
	if t.cartRepo == nil {
		t.cartRepo = &txCarts{dbtx: t.dbtx, repo: repository.NewCartRepository(t.dbtx)}
	}
	return t.cartRepo
}

// Transaction-bound adapters: every call runs on the pgTx's dbtx.

type txOrders struct {
	dbtx db.DBTX
	repo *repository.OrderRepository
}

func (o *txOrders) Create(ctx context.Context, ord *order.Order) error {
	return o.repo.Create(ctx, o.dbtx, ord)
}

func (o *txOrders) CreateItems(ctx context.Context, orderID uuid.UUID, items []order.Item) error {
	return o.repo.CreateItems(ctx, o.dbtx, orderID, items)
}

type txProducts struct {
	dbtx db.DBTX
	repo *repository.ProductRepository
}

func (p *txProducts) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int32) error {
	return p.repo.DecrementStock(ctx, p.dbtx, productID, quantity)
}

type txCarts struct {
	dbtx db.DBTX
	repo *repository.CartRepository
}

func (c *txCarts) ClearByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return c.repo.ClearByUser(ctx, c.dbtx, userID)
}

type commandReads struct {
	dbtx db.DBTX

	// Lazy-initialized repositories
	orderRepo   *repository.OrderRepository
	cartRepo    *repository.CartRepository
	productRepo *repository.ProductRepository
}

func (r *commandReads) OrderBySessionID(ctx context.Context, sessionID string) (*shared.OrderSnapshot, error) {
	if r.orderRepo == nil {
		r.orderRepo = repository.NewOrderRepository(r.dbtx)
	}
	rec, err := r.orderRepo.FindBySessionID(ctx, r.dbtx, sessionID)
	if err != nil || rec == nil {
		return nil, err
	}
	return orderSnapshot(rec), nil
}

func (r *commandReads) CartItemsByUser(ctx context.Context, userID uuid.UUID) ([]shared.CartItemSnapshot, error) {
	if r.cartRepo == nil {
		r.cartRepo = repository.NewCartRepository(r.dbtx)
	}
	recs, err := r.cartRepo.ItemsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]shared.CartItemSnapshot, len(recs))
	for i, rec := range recs {
		items[i] = shared.CartItemSnapshot{
			ProductID:      rec.ProductID,
			ProductName:    rec.ProductName,
			UnitPriceCents: rec.UnitPriceCents,
			Quantity:       rec.Quantity,
			ImageURL:       rec.ImageURL,
		}
	}
	return items, nil
}

func (r *commandReads) ProductByID(ctx context.Context, id uuid.UUID) (*shared.ProductSnapshot, error) {
	if r.productRepo == nil {
		r.productRepo = repository.NewProductRepository(r.dbtx)
	}
	rec, err := r.productRepo.FindByID(ctx, id)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shared.ProductSnapshot{
		ID:         rec.ID,
		Name:       rec.Name,
		PriceCents: rec.PriceCents,
		ImageURL:   rec.ImageURL,
		Stock:      rec.Stock,
	}, nil
}

func orderSnapshot(rec *repository.OrderRecord) *shared.OrderSnapshot {
	return &shared.OrderSnapshot{
		ID:         rec.ID,
		UserID:     rec.UserID,
		TotalCents: rec.TotalCents,
		Status:     order.Status(rec.Status),
		SessionID:  rec.SessionID,
		CreatedAt:  rec.CreatedAt,
	}
}
