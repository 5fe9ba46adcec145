package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"bandwithpush/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationsStore writes to the in-app notification sink. The table is
// owned by the BandWith application; this store only inserts.
type NotificationsStore struct {
	pool *pgxpool.Pool
}

func NewNotificationsStore(pool *pgxpool.Pool) *NotificationsStore {
	return &NotificationsStore{pool: pool}
}

func (s *NotificationsStore) InsertNotifications(ctx context.Context, rows []domain.InAppNotification) error {
	if len(rows) == 0 {
		return nil
	}

	const q = `
		INSERT INTO notifications (id, user_id, type, title, body, data, read, band_id, action_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`

	batch := &pgx.Batch{}
	for _, n := range rows {
		id := n.ID
		if id == "" {
			id = uuid.NewString()
		}
		data, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("marshal notification data: %w", err)
		}
		batch.Queue(q, id, n.UserID, n.Type, n.Title, n.Body, data, n.Read, nullIfEmpty(n.BandID), nullIfEmpty(n.ActionURL))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
