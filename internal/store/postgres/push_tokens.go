package postgres

import (
	"context"
	"fmt"
	"time"

	"bandwithpush/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PushTokensStore struct {
	pool *pgxpool.Pool
}

func NewPushTokensStore(pool *pgxpool.Pool) *PushTokensStore {
	return &PushTokensStore{pool: pool}
}

// ListActiveTokens returns every active token across all platforms for the
// given users. The caller fans out per returned row's platform.
func (s *PushTokensStore) ListActiveTokens(ctx context.Context, userIDs []string) ([]domain.PushToken, error) {
	const q = `
		SELECT id, user_id, token, platform, is_active, created_at, updated_at
		FROM push_tokens
		WHERE user_id = ANY($1) AND is_active
		ORDER BY updated_at DESC
	`

	rows, err := s.pool.Query(ctx, q, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list active push tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.PushToken
	for rows.Next() {
		var (
			idUUID   pgtype.UUID
			userUUID pgtype.UUID
			token    string
			platform string
			isActive bool
			created  time.Time
			updated  time.Time
		)
		if err := rows.Scan(&idUUID, &userUUID, &token, &platform, &isActive, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan push token: %w", err)
		}
		out = append(out, domain.PushToken{
			ID:        uuidOrEmpty(idUUID),
			UserID:    uuidOrEmpty(userUUID),
			Token:     token,
			Platform:  domain.Platform(platform),
			IsActive:  isActive,
			CreatedAt: created,
			UpdatedAt: updated,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active push tokens: %w", err)
	}
	return out, nil
}

// UpsertToken registers a device token, reclaiming the row if the same token
// value was previously registered (possibly by another user, possibly
// deactivated). Re-registration always reactivates.
func (s *PushTokensStore) UpsertToken(ctx context.Context, userID, token string, platform domain.Platform, when time.Time) (domain.PushToken, error) {
	const q = `
		INSERT INTO push_tokens (user_id, token, platform, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (token)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			is_active = TRUE,
			updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, token, platform, is_active, created_at, updated_at
	`

	var (
		idUUID    pgtype.UUID
		userUUID  pgtype.UUID
		outToken  string
		outPlat   string
		isActive  bool
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, q, userID, token, string(platform), when).Scan(
		&idUUID,
		&userUUID,
		&outToken,
		&outPlat,
		&isActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.PushToken{}, fmt.Errorf("upsert push token: %w", err)
	}

	return domain.PushToken{
		ID:        uuidOrEmpty(idUUID),
		UserID:    uuidOrEmpty(userUUID),
		Token:     outToken,
		Platform:  domain.Platform(outPlat),
		IsActive:  isActive,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// DeactivateToken soft-deletes a token by id after a provider confirmed it
// dead. Idempotent; deactivating an already-inactive token is a no-op.
func (s *PushTokensStore) DeactivateToken(ctx context.Context, tokenID string) error {
	const q = `
		UPDATE push_tokens
		SET is_active = FALSE, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, q, tokenID); err != nil {
		return fmt.Errorf("deactivate push token: %w", err)
	}
	return nil
}

// DeactivateTokenByValue handles explicit client unregistration.
func (s *PushTokensStore) DeactivateTokenByValue(ctx context.Context, userID, token string) error {
	const q = `
		UPDATE push_tokens
		SET is_active = FALSE, updated_at = now()
		WHERE user_id = $1 AND token = $2
	`
	if _, err := s.pool.Exec(ctx, q, userID, token); err != nil {
		return fmt.Errorf("deactivate push token by value: %w", err)
	}
	return nil
}
