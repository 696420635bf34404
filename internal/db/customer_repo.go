package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"dodolink/internal/types"
)

// CustomerRepo manages the customers table: the 1:1 mapping between a local
// user id and its payments-provider customer id. Rows are created once and
// never updated; absence means "not yet linked".
type CustomerRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewCustomerRepo creates a CustomerRepo backed by the given database
// connection (pool or transaction).
func NewCustomerRepo(db DBTX, logger *slog.Logger) *CustomerRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &CustomerRepo{db: db, logger: logger}
}

// Get fetches the mapping for a user id. Returns (nil, nil) when no mapping
// exists; only infrastructure failures produce an error.
func (r *CustomerRepo) Get(ctx context.Context, userID string) (*types.CustomerMapping, error) {
	var mapping types.CustomerMapping
	err := r.db.QueryRow(ctx,
		`SELECT id, dodo_customer_id, created_at
		 FROM customers
		 WHERE id = $1`,
		userID,
	).Scan(&mapping.UserID, &mapping.DodoCustomerID, &mapping.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch customer mapping", err)
	}
	return &mapping, nil
}

// Create inserts the mapping row. ON CONFLICT DO NOTHING keeps a concurrent
// duplicate registration from failing; the first writer wins.
func (r *CustomerRepo) Create(ctx context.Context, mapping *types.CustomerMapping) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO customers (id, dodo_customer_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO NOTHING`,
		mapping.UserID,
		mapping.DodoCustomerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create customer mapping", err)
	}
	return nil
}
