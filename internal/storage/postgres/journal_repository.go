package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// JournalRepositoryPostgres хранит журнал складских резервов в PostgreSQL.
type JournalRepositoryPostgres struct {
	db *sql.DB
}

// NewJournalRepository создаёт репозиторий журнала резервов поверх Store.
func NewJournalRepository(store *Store) *JournalRepositoryPostgres {
	return &JournalRepositoryPostgres{db: store.DB()}
}

var _ domain.JournalRepository = (*JournalRepositoryPostgres)(nil)

// Append пишет новую pending-запись резерва и возвращает её с заполненным ID.
func (r *JournalRepositoryPostgres) Append(entry domain.JournalEntry) (domain.JournalEntry, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	now := time.Now().UTC()
	entry.ID = uuid.NewString()
	entry.Status = domain.JournalStatusPending
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_journal (id, order_id, sku, qty, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.OrderID, entry.SKU, entry.Qty,
		string(entry.Status), entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("append journal entry for order %s: %w", entry.OrderID, err)
	}
	return entry, nil
}

// MarkCommitted переводит все pending-записи заказа в committed.
func (r *JournalRepositoryPostgres) MarkCommitted(orderID string) error {
	ctx, cancel := queryCtx()
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		UPDATE stock_journal
		SET status = $2, updated_at = now()
		WHERE order_id = $1 AND status = $3`,
		orderID, string(domain.JournalStatusCommitted), string(domain.JournalStatusPending),
	)
	if err != nil {
		return fmt.Errorf("commit journal entries for order %s: %w", orderID, err)
	}
	return nil
}

// MarkReleased переводит одну запись в released.
func (r *JournalRepositoryPostgres) MarkReleased(id string) error {
	ctx, cancel := queryCtx()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE stock_journal
		SET status = $2, updated_at = now()
		WHERE id = $1`,
		id, string(domain.JournalStatusReleased),
	)
	if err != nil {
		return fmt.Errorf("release journal entry %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release journal entry %s: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrJournalEntryNotFound
	}
	return nil
}

// ListByOrder возвращает записи журнала по заказу, старые первыми.
func (r *JournalRepositoryPostgres) ListByOrder(orderID string) ([]domain.JournalEntry, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, sku, qty, status, created_at, updated_at
		FROM stock_journal
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries for order %s: %w", orderID, err)
	}
	return collectJournalEntries(rows)
}

// PullStale возвращает до limit pending-записей старше before, старые первыми.
func (r *JournalRepositoryPostgres) PullStale(before time.Time, limit int) ([]domain.JournalEntry, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, sku, qty, status, created_at, updated_at
		FROM stock_journal
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`,
		string(domain.JournalStatusPending), before, limit)
	if err != nil {
		return nil, fmt.Errorf("pull stale journal entries: %w", err)
	}
	return collectJournalEntries(rows)
}

// Stats возвращает сводку по незакрытым записям журнала.
func (r *JournalRepositoryPostgres) Stats() (domain.JournalStats, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	var stats domain.JournalStats
	var oldest sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*), min(created_at)
		FROM stock_journal
		WHERE status = $1`,
		string(domain.JournalStatusPending),
	).Scan(&stats.PendingCount, &oldest)
	if err != nil {
		return domain.JournalStats{}, fmt.Errorf("journal stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time
	}
	return stats, nil
}

func collectJournalEntries(rows *sql.Rows) ([]domain.JournalEntry, error) {
	defer func() { _ = rows.Close() }()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var status string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.SKU, &e.Qty, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Status = domain.JournalStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal entries: %w", err)
	}
	return entries, nil
}
