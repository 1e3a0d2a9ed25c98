package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/letsssgooo/vkQuizBot/internal/client"
	"github.com/letsssgooo/vkQuizBot/internal/events/sender"
	"github.com/letsssgooo/vkQuizBot/internal/storage"
)

// Handler обрабатывает входящие сообщения: запоминает автора и отвечает на команды.
type Handler struct {
	storage storage.Storage
	sender  sender.MessageSender
	log     *slog.Logger
	now     func() time.Time
}

// NewHandler создает обработчик входящих сообщений.
func NewHandler(st storage.Storage, snd sender.MessageSender, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		storage: st,
		sender:  snd,
		log:     log.With(slog.String("component", "handler")),
		now:     time.Now,
	}
}

// Dispatch реализует Dispatcher.
func (h *Handler) Dispatch(ctx context.Context, update client.Update) error {
	return h.HandleUpdate(ctx, update)
}

// HandleUpdate обрабатывает одно обновление.
// random_id ответа выводится из ID входящего сообщения, поэтому
// повторно доставленное обновление не приводит к дублю ответа.
// Для сообщений без ID random_id генерируется заново.
func (h *Handler) HandleUpdate(ctx context.Context, update client.Update) error {
	if update.Type != client.UpdateTypeMessageNew {
		return nil
	}

	msg := update.Message

	user, err := h.storage.TouchUser(ctx, msg.FromID, h.now())
	if err != nil {
		return fmt.Errorf("failed to save user %d: %w", msg.FromID, err)
	}

	h.log.Debug("message received",
		slog.Int64("message_id", msg.ID),
		slog.Int64("from_id", msg.FromID),
		slog.Int("messages_count", user.MessagesCount),
	)

	return h.sender.Send(ctx, client.OutboundMessage{
		UserID:   msg.FromID,
		Text:     reply(msg.Text, user.IsNew()),
		RandomID: replyRandomID(msg.ID),
	})
}

// replyRandomID выбирает random_id ответа. Сообщения из бесед приходят
// с id = 0: общий random_id склеил бы все ответы в один, поэтому для них
// берется новый.
func replyRandomID(messageID int64) int32 {
	if messageID == 0 {
		return sender.NewRandomID()
	}

	return sender.ReplyRandomID(messageID)
}

// reply выбирает ответ на текст сообщения.
func reply(text string, isNew bool) string {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "начать", "start", "/start":
		return msgStart
	case "помощь", "help", "/help":
		return msgHelp
	}

	if isNew {
		return msgGreeting
	}

	return msgUnknownCommand
}
