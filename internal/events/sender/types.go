package sender

import (
	"context"

	"github.com/letsssgooo/vkQuizBot/internal/client"
)

// MessageSender определяет основной интерфейс для отправки сообщений.
type MessageSender interface {
	// Message отправляет текстовое сообщение пользователю userID с random_id = 0.
	Message(ctx context.Context, userID int64, text string) error

	// Send отправляет сообщение с random_id, заданным вызывающим.
	Send(ctx context.Context, msg client.OutboundMessage) error
}
