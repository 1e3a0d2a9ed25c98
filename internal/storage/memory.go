package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/letsssgooo/vkQuizBot/internal/domain/models"
)

// MemoryStorage реализует Storage в памяти.
type MemoryStorage struct {
	users map[int64]*models.BotUser
	mu    sync.RWMutex
}

// NewMemoryStorage создаёт новый MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[int64]*models.BotUser),
	}
}

// TouchUser отмечает сообщение пользователя.
func (s *MemoryStorage) TouchUser(_ context.Context, userID int64, at time.Time) (*models.BotUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		user = &models.BotUser{
			ID:          userID,
			FirstSeenAt: at,
		}
		s.users[userID] = user
	}

	user.LastSeenAt = at
	user.MessagesCount++

	userCopy := *user

	return &userCopy, nil
}

// ListUsers возвращает всех пользователей.
func (s *MemoryStorage) ListUsers(_ context.Context) ([]*models.BotUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.BotUser, 0, len(s.users))
	for _, user := range s.users {
		userCopy := *user
		users = append(users, &userCopy)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})

	return users, nil
}
