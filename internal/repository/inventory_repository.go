package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// inventoryRepository implements the InventoryRepository interface using PostgreSQL.
type inventoryRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory repository.
func NewInventoryRepository(pool *pgxpool.Pool, logger zerolog.Logger) InventoryRepository {
	return &inventoryRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "inventory").Logger(),
	}
}

// Apply is the only code path that writes products.stock. The row lock is
// held until the caller's transaction ends, so concurrent changes to the same
// product are serialised and each sees the previous one's result.
func (r *inventoryRepository) Apply(ctx context.Context, tx pgx.Tx, change model.InventoryChange) (*model.InventoryLogEntry, error) {
	var name string
	var previous int
	err := tx.QueryRow(ctx,
		`SELECT name, stock FROM products WHERE id = $1 FOR UPDATE`,
		change.ProductID,
	).Scan(&name, &previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewProductNotFoundError(change.ProductID)
		}
		r.logger.Error().Err(err).Str("product_id", change.ProductID).Msg("failed to lock product row")
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	change = change.WithDerivedType(previous)
	next, err := change.Resolve(previous)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("product_id", change.ProductID).
			Str("change_type", string(change.Type)).
			Int("previous_count", previous).
			Msg("inventory change rejected")
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`,
		change.ProductID, next,
	); err != nil {
		r.logger.Error().Err(err).Str("product_id", change.ProductID).Msg("failed to write stock")
		return nil, fmt.Errorf("failed to write stock: %w", err)
	}

	entry := &model.InventoryLogEntry{
		ID:            uuid.New(),
		ProductID:     change.ProductID,
		ProductName:   name,
		PreviousCount: previous,
		NewCount:      next,
		ChangeType:    change.Type,
		Note:          change.Note,
		OrderID:       change.OrderID,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO inventory_logs (id, product_id, previous_count, new_count, change_type, note, order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`,
		entry.ID,
		entry.ProductID,
		entry.PreviousCount,
		entry.NewCount,
		entry.ChangeType,
		entry.Note,
		entry.OrderID,
	).Scan(&entry.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", change.ProductID).Msg("failed to append inventory log")
		return nil, fmt.Errorf("failed to append inventory log: %w", err)
	}

	r.logger.Debug().
		Str("product_id", entry.ProductID).
		Str("change_type", string(entry.ChangeType)).
		Int("previous_count", entry.PreviousCount).
		Int("new_count", entry.NewCount).
		Msg("inventory change applied")

	return entry, nil
}

// ListLogs retrieves ledger entries, newest first.
func (r *inventoryRepository) ListLogs(ctx context.Context, filter LogFilter) ([]model.InventoryLogEntry, error) {
	query := `
		SELECT l.id, l.product_id, p.name, l.previous_count, l.new_count,
		       l.change_type, l.note, l.order_id, l.created_at
		FROM inventory_logs l
		JOIN products p ON p.id = l.product_id
		WHERE ($1 = '' OR l.product_id = $1)
		ORDER BY l.seq DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, filter.ProductID, filter.Limit)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", filter.ProductID).Msg("failed to query inventory logs")
		return nil, fmt.Errorf("failed to query inventory logs: %w", err)
	}

	return collectLogs(rows)
}

// Reconcile reads stock and ledger inside one repeatable-read transaction so a
// concurrent sale cannot appear on one side only.
func (r *inventoryRepository) Reconcile(ctx context.Context) ([]model.LedgerDiscrepancy, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin reconcile transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	type stockRow struct {
		name  string
		stock int
	}
	stock := map[string]stockRow{}
	order := []string{}

	rows, err := tx.Query(ctx, `SELECT id, name, stock FROM products ORDER BY id`)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query stock levels")
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	for rows.Next() {
		var id string
		var row stockRow
		if err := rows.Scan(&id, &row.name, &row.stock); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		stock[id] = row
		order = append(order, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock levels: %w", err)
	}

	logRows, err := tx.Query(ctx, `
		SELECT l.id, l.product_id, p.name, l.previous_count, l.new_count,
		       l.change_type, l.note, l.order_id, l.created_at
		FROM inventory_logs l
		JOIN products p ON p.id = l.product_id
		ORDER BY l.product_id, l.seq
	`)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query inventory ledger")
		return nil, fmt.Errorf("failed to query inventory ledger: %w", err)
	}
	entries, err := collectLogs(logRows)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string][]model.InventoryLogEntry, len(order))
	for _, e := range entries {
		byProduct[e.ProductID] = append(byProduct[e.ProductID], e)
	}

	discrepancies := []model.LedgerDiscrepancy{}
	for _, id := range order {
		d, ok := model.ReconcileLedger(id, stock[id].stock, byProduct[id])
		if ok {
			continue
		}
		d.ProductName = stock[id].name
		discrepancies = append(discrepancies, d)
	}

	if len(discrepancies) > 0 {
		r.logger.Warn().Int("count", len(discrepancies)).Msg("inventory ledger discrepancies found")
	}

	return discrepancies, nil
}

func collectLogs(rows pgx.Rows) ([]model.InventoryLogEntry, error) {
	defer rows.Close()

	entries := []model.InventoryLogEntry{}
	for rows.Next() {
		var e model.InventoryLogEntry
		err := rows.Scan(
			&e.ID,
			&e.ProductID,
			&e.ProductName,
			&e.PreviousCount,
			&e.NewCount,
			&e.ChangeType,
			&e.Note,
			&e.OrderID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory log: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory logs: %w", err)
	}

	return entries, nil
}
