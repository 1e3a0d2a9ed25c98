package sender

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/letsssgooo/vkQuizBot/internal/client"
)

// Sender реализует отправку сообщений через VK API.
// Каждое сообщение отправляется одним запросом, без очереди и повторов.
type Sender struct {
	client client.Client
	log    *slog.Logger
}

// NewSender создает новый объект структуры Sender.
func NewSender(c client.Client, log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}

	return &Sender{
		client: c,
		log:    log.With(slog.String("component", "sender")),
	}
}

// Message отправляет текстовое сообщение с random_id = 0.
// VK в этом случае не отбрасывает дубликаты: повторный вызов
// может доставить сообщение дважды.
func (s *Sender) Message(ctx context.Context, userID int64, text string) error {
	return s.Send(ctx, client.OutboundMessage{UserID: userID, Text: text})
}

// Send отправляет сообщение. Без открытой сессии или учетных данных ничего не делает.
func (s *Sender) Send(ctx context.Context, msg client.OutboundMessage) error {
	if !s.client.Configured() || !s.client.Connected() {
		s.log.Debug("bot is not connected, message dropped", slog.Int64("user_id", msg.UserID))
		return nil
	}

	if err := s.client.SendMessage(ctx, msg); err != nil {
		s.log.Warn("failed to send message",
			slog.Int64("user_id", msg.UserID),
			slog.String("error", err.Error()),
		)

		return err
	}

	return nil
}

// ReplyRandomID выводит random_id ответа из ID входящего сообщения.
// Повторная отправка ответа на то же сообщение получит тот же random_id,
// и VK отбросит дубликат.
func ReplyRandomID(messageID int64) int32 {
	id := int32(messageID & math.MaxInt32)
	if id == 0 {
		return 1
	}

	return id
}

// NewRandomID возвращает новый ненулевой random_id на основе UUID.
// Вызывающий сохраняет его и передает в повторные попытки той же отправки,
// чтобы VK отбросил дубликат.
func NewRandomID() int32 {
	id := uuid.New()

	var folded uint32
	for i := 0; i < len(id); i += 4 {
		folded ^= binary.BigEndian.Uint32(id[i : i+4])
	}

	if v := int32(folded & math.MaxInt32); v != 0 {
		return v
	}

	return 1
}
