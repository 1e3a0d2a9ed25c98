package storage

import (
	"context"
	"time"

	"github.com/letsssgooo/vkQuizBot/internal/domain/models"
)

// Storage определяет интерфейс для хранения пользователей бота.
type Storage interface {
	// TouchUser отмечает сообщение пользователя userID в момент at
	// и возвращает обновленную запись (создает ее при первом сообщении).
	TouchUser(ctx context.Context, userID int64, at time.Time) (*models.BotUser, error)

	// ListUsers возвращает всех пользователей, отсортированных по ID.
	ListUsers(ctx context.Context) ([]*models.BotUser, error)
}
