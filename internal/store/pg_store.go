package store

import (
	"context"
	"errors"
	"fmt"

	sweeterrors "github.com/abgdnv/sweetshop/internal/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const sweetColumns = "id, name, category, price, quantity, version, created_at, updated_at"

const (
	findByIDQuery = `SELECT ` + sweetColumns + ` FROM sweets WHERE id = $1`

	findAllQuery = `SELECT ` + sweetColumns + ` FROM sweets ORDER BY seq`

	existsByNameQuery = `SELECT EXISTS (SELECT 1 FROM sweets WHERE name = $1)`

	createQuery = `INSERT INTO sweets (name, category, price, quantity)
VALUES ($1, $2, $3, $4)
RETURNING ` + sweetColumns

	updateQuery = `UPDATE sweets
SET name = $2, category = $3, price = $4, quantity = $5, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $6
RETURNING ` + sweetColumns

	existsByIDQuery = `SELECT EXISTS (SELECT 1 FROM sweets WHERE id = $1)`

	deleteQuery = `DELETE FROM sweets WHERE id = $1`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgStore implements SweetStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of SweetStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

// FindByID retrieves a sweet by its unique identifier.
// Returns ErrSweetNotFound if no sweet exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Sweet, error) {
	sweet, err := scanSweet(p.db.QueryRow(ctx, findByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sweeterrors.ErrSweetNotFound
		}
		return nil, fmt.Errorf("failed to find sweet by ID: %w", err)
	}
	return sweet, nil
}

// FindAll retrieves all sweets in the order they were created.
func (p *PgStore) FindAll(ctx context.Context) ([]Sweet, error) {
	rows, err := p.db.Query(ctx, findAllQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to find all sweets: %w", err)
	}
	defer rows.Close()

	sweets := make([]Sweet, 0)
	for rows.Next() {
		sweet, err := scanSweet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweet: %w", err)
		}
		sweets = append(sweets, *sweet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sweets: %w", err)
	}
	return sweets, nil
}

// ExistsByName reports whether a sweet with exactly this name is stored.
func (p *PgStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := p.db.QueryRow(ctx, existsByNameQuery, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check sweet name: %w", err)
	}
	return exists, nil
}

// Create adds a new sweet. The identifier is generated by the database.
// Returns ErrDuplicateName if the name is already taken.
func (p *PgStore) Create(ctx context.Context, params CreateParams) (*Sweet, error) {
	sweet, err := scanSweet(p.db.QueryRow(ctx, createQuery, params.Name, params.Category, params.Price, params.Quantity))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sweeterrors.ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create sweet: %w", err)
	}
	return sweet, nil
}

// Update writes the new field values only if the stored version still equals params.Version.
// A miss is resolved inside the same transaction into ErrSweetNotFound or ErrVersionMismatch.
func (p *PgStore) Update(ctx context.Context, params UpdateParams) (*Sweet, error) {
	var updated *Sweet

	txErr := p.withTransaction(ctx, func(q querier) error {
		var err error
		updated, err = scanSweet(q.QueryRow(ctx, updateQuery,
			params.ID, params.Name, params.Category, params.Price, params.Quantity, params.Version))
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			return sweeterrors.ErrDuplicateName
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to update sweet: %w", err)
		}
		// Check if the sweet exists, or it's an optimistic lock error.
		var exists bool
		if err := q.QueryRow(ctx, existsByIDQuery, params.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check sweet existence: %w", err)
		}
		if !exists {
			return sweeterrors.ErrSweetNotFound
		}
		return sweeterrors.ErrVersionMismatch
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

// DeleteByID removes a sweet by its unique identifier.
// Returns ErrSweetNotFound if no sweet exists with the given ID.
func (p *PgStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := p.db.Exec(ctx, deleteQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete sweet by ID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sweeterrors.ErrSweetNotFound
	}
	return nil
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(q querier) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", sweeterrors.ErrTransactionBegin, err)
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w: %w", sweeterrors.ErrTransactionRollback, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", sweeterrors.ErrTransactionCommit, err)
	}
	return nil
}

func scanSweet(row pgx.Row) (*Sweet, error) {
	var s Sweet
	if err := row.Scan(&s.ID, &s.Name, &s.Category, &s.Price, &s.Quantity, &s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
