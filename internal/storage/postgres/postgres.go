package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/letsssgooo/vkQuizBot/internal/domain/models"
	"github.com/letsssgooo/vkQuizBot/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS bot_users (
	id             BIGINT PRIMARY KEY,
	first_seen_at  TIMESTAMPTZ NOT NULL,
	last_seen_at   TIMESTAMPTZ NOT NULL,
	messages_count INTEGER NOT NULL DEFAULT 0
)
`

// Storage реализует storage.Storage поверх PostgreSQL.
type Storage struct {
	pool *pgxpool.Pool
}

var _ storage.Storage = (*Storage)(nil)

// NewStorage подключается к базе по dsn и создает таблицу bot_users, если ее нет.
func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}

	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err = pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Storage{pool: pool}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) TouchUser(ctx context.Context, userID int64, at time.Time) (*models.BotUser, error) {
	query := `
	INSERT INTO bot_users (id, first_seen_at, last_seen_at, messages_count) VALUES ($1, $2, $2, 1)
	ON CONFLICT (id) DO UPDATE
		SET last_seen_at = EXCLUDED.last_seen_at, messages_count = bot_users.messages_count + 1
	RETURNING id, first_seen_at, last_seen_at, messages_count
	`

	var user models.BotUser

	err := s.pool.QueryRow(ctx, query, userID, at).
		Scan(&user.ID, &user.FirstSeenAt, &user.LastSeenAt, &user.MessagesCount)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*models.BotUser, error) {
	query := `
	SELECT id, first_seen_at, last_seen_at, messages_count FROM bot_users ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.BotUser

	for rows.Next() {
		var user models.BotUser
		if err = rows.Scan(&user.ID, &user.FirstSeenAt, &user.LastSeenAt, &user.MessagesCount); err != nil {
			return nil, err
		}

		users = append(users, &user)
	}

	return users, rows.Err()
}
