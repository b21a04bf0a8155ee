package postgres

import (
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// TimelineRepositoryPostgres хранит события жизненного цикла заказов в PostgreSQL.
type TimelineRepositoryPostgres struct {
	db *sql.DB
}

// NewTimelineRepository создаёт репозиторий временной шкалы поверх Store.
func NewTimelineRepository(store *Store) *TimelineRepositoryPostgres {
	return &TimelineRepositoryPostgres{db: store.DB()}
}

var _ domain.TimelineRepository = (*TimelineRepositoryPostgres)(nil)

// Append сохраняет одно событие временной шкалы.
func (r *TimelineRepositoryPostgres) Append(event domain.TimelineEvent) error {
	ctx, cancel := queryCtx()
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_timeline (order_id, type, reason, occurred)
		VALUES ($1, $2, $3, $4)`,
		event.OrderID, event.Type, event.Reason, event.Occurred,
	)
	if err != nil {
		return fmt.Errorf("append timeline event for order %s: %w", event.OrderID, err)
	}
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *TimelineRepositoryPostgres) List(orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := queryCtx()
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, type, reason, occurred
		FROM order_timeline
		WHERE order_id = $1
		ORDER BY occurred, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list timeline for order %s: %w", orderID, err)
	}
	defer func() { _ = rows.Close() }()

	var events []domain.TimelineEvent
	for rows.Next() {
		var e domain.TimelineEvent
		if err := rows.Scan(&e.OrderID, &e.Type, &e.Reason, &e.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	return events, nil
}
