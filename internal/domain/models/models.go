package models

import (
	"time"
)

// Модели, которые обработчики передают в хранилище.

// BotUser — пользователь VK, писавший боту.
type BotUser struct {
	ID            int64
	FirstSeenAt   time.Time
	LastSeenAt    time.Time
	MessagesCount int
}

// IsNew сообщает, что это первое сообщение пользователя.
func (u *BotUser) IsNew() bool {
	return u.MessagesCount == 1
}
