package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/versusfit/versus/internal/models"
)

// notificationStateKey holds the JSON array of notification records.
const notificationStateKey = "notifications"

// NotificationRepository persists the account notification list.
type NotificationRepository struct {
	store *Store
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(store *Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

// Load returns the persisted notification records, oldest first. A missing key
// yields an empty slice.
func (r *NotificationRepository) Load(ctx context.Context) ([]models.Notification, error) {
	value, err := r.store.GetValue(ctx, notificationStateKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return []models.Notification{}, nil
		}
		return nil, err
	}

	var records []models.Notification
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		return nil, fmt.Errorf("failed to parse notification state: %w", err)
	}
	return records, nil
}

// Save replaces the persisted notification records.
func (r *NotificationRepository) Save(ctx context.Context, records []models.Notification) error {
	if records == nil {
		records = []models.Notification{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal notification state: %w", err)
	}
	return r.store.SetValue(ctx, notificationStateKey, string(data))
}

// Clear removes the persisted notification records.
func (r *NotificationRepository) Clear(ctx context.Context) error {
	return r.store.DeleteValue(ctx, notificationStateKey)
}
