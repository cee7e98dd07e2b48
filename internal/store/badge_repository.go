package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// badgeStateKey holds the JSON object mapping conversation id to unread count.
const badgeStateKey = "unread_badges"

// BadgeRepository persists the unread badge mapping.
type BadgeRepository struct {
	store *Store
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(store *Store) *BadgeRepository {
	return &BadgeRepository{store: store}
}

// Load returns the persisted badge mapping. A missing key yields an empty map.
func (r *BadgeRepository) Load(ctx context.Context) (map[string]int, error) {
	value, err := r.store.GetValue(ctx, badgeStateKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return map[string]int{}, nil
		}
		return nil, err
	}

	counts := map[string]int{}
	if err := json.Unmarshal([]byte(value), &counts); err != nil {
		return nil, fmt.Errorf("failed to parse badge state: %w", err)
	}
	return counts, nil
}

// Save replaces the persisted badge mapping.
func (r *BadgeRepository) Save(ctx context.Context, counts map[string]int) error {
	if counts == nil {
		counts = map[string]int{}
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to marshal badge state: %w", err)
	}
	return r.store.SetValue(ctx, badgeStateKey, string(data))
}

// Clear removes the persisted badge mapping.
func (r *BadgeRepository) Clear(ctx context.Context) error {
	return r.store.DeleteValue(ctx, badgeStateKey)
}
