package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// journalRepositoryInMemory — in-memory журнал резервов.
type journalRepositoryInMemory struct {
	mu      sync.RWMutex
	entries map[string]domain.JournalEntry
}

// NewJournalRepository создаёт in-memory реализацию JournalRepository.
func NewJournalRepository() domain.JournalRepository {
	return &journalRepositoryInMemory{entries: make(map[string]domain.JournalEntry)}
}

// Append сохраняет запись со статусом pending и присваивает ей идентификатор.
func (r *journalRepositoryInMemory) Append(entry domain.JournalEntry) (domain.JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.Status = domain.JournalStatusPending
	entry.CreatedAt = now
	entry.UpdatedAt = now
	r.entries[entry.ID] = entry
	return entry, nil
}

// MarkCommitted помечает все pending-записи заказа как committed.
func (r *journalRepositoryInMemory) MarkCommitted(orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for id, entry := range r.entries {
		if entry.OrderID != orderID || entry.Status != domain.JournalStatusPending {
			continue
		}
		entry.Status = domain.JournalStatusCommitted
		entry.UpdatedAt = now
		r.entries[id] = entry
	}
	return nil
}

// MarkReleased помечает запись как released. Идемпотентно: повторный вызов
// для уже released-записи не ошибка.
func (r *journalRepositoryInMemory) MarkReleased(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return domain.ErrJournalEntryNotFound
	}
	entry.Status = domain.JournalStatusReleased
	entry.UpdatedAt = time.Now().UTC()
	r.entries[id] = entry
	return nil
}

// ListByOrder возвращает записи журнала по заказу в порядке создания.
func (r *journalRepositoryInMemory) ListByOrder(orderID string) ([]domain.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.JournalEntry, 0)
	for _, entry := range r.entries {
		if entry.OrderID != orderID {
			continue
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// PullStale возвращает до limit pending-записей старше before.
func (r *journalRepositoryInMemory) PullStale(before time.Time, limit int) ([]domain.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.JournalEntry, 0, limit)
	for _, entry := range r.entries {
		if entry.Status != domain.JournalStatusPending {
			continue
		}
		if !entry.CreatedAt.Before(before) {
			continue
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Stats возвращает сводку по незакрытым записям.
func (r *journalRepositoryInMemory) Stats() (domain.JournalStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.JournalStats{}
	for _, entry := range r.entries {
		if entry.Status != domain.JournalStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || entry.CreatedAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = entry.CreatedAt
		}
	}
	return stats, nil
}

var _ domain.JournalRepository = (*journalRepositoryInMemory)(nil)
