package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Credentials содержит учетные данные бота сообщества.
type Credentials struct {
	AccessToken string
	GroupID     int64
}

// Configured сообщает, заданы ли учетные данные.
// Без них весь бот остается неактивным.
func (c Credentials) Configured() bool {
	return c.AccessToken != "" && c.GroupID != 0
}

// LongPollServer — параметры сессии long poll: адрес сервера, ключ и курсор (ts).
type LongPollServer struct {
	Server string
	Key    string
	TS     int64
}

// Complete сообщает, заполнены ли все параметры сессии.
func (s *LongPollServer) Complete() bool {
	return s != nil && s.Server != "" && s.Key != ""
}

// PollResult представляет ответ long poll сервера.
type PollResult struct {
	// TS — новый курсор; nil, если сервер его не вернул.
	TS      *int64
	Updates []json.RawMessage
	// Failed — код ошибки сессии; 0, если сессия валидна.
	Failed int
}

// Update представляет входящее обновление от VK.
type Update struct {
	Type    string
	EventID string
	GroupID int64
	Message Message
}

// Message представляет входящее сообщение.
type Message struct {
	ID     int64
	FromID int64
	PeerID int64
	Text   string
	Date   int64
}

// OutboundMessage представляет исходящее сообщение пользователю.
type OutboundMessage struct {
	UserID int64
	Text   string
	// RandomID — маркер идемпотентности VK; 0 отключает дедупликацию.
	RandomID int32
}

// APIError — ошибка, которую вернул VK API.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// Client определяет интерфейс клиента VK API.
type Client interface {
	// Connected сообщает, открыта ли HTTP сессия.
	Connected() bool

	// Configured сообщает, заданы ли учетные данные бота.
	Configured() bool

	// GetLongPollServer получает параметры новой long poll сессии.
	GetLongPollServer(ctx context.Context) (*LongPollServer, error)

	// CheckUpdates выполняет один long poll запрос (может блокироваться до wait секунд).
	CheckUpdates(ctx context.Context, server LongPollServer, wait int) (*PollResult, error)

	// SendMessage отправляет текстовое сообщение.
	SendMessage(ctx context.Context, msg OutboundMessage) error
}

// Ошибки клиента
var (
	ErrUpstreamUnavailable = errors.New("long poll server is unavailable")
	ErrSessionExpired      = errors.New("long poll session expired")
	ErrSendFailed          = errors.New("message was not sent")
)

// Параметры VK API
const (
	APIVersion     = "5.131"
	DefaultAPIHost = "https://api.vk.com/method/"

	// UpdateTypeMessageNew — тип обновления о новом сообщении.
	UpdateTypeMessageNew = "message_new"

	// DefaultWait — время ожидания long poll запроса на стороне сервера, в секундах.
	DefaultWait = 25
)

// Таймауты
const (
	timeoutSend      = 3 * time.Second
	timeoutBootstrap = 5 * time.Second
	// longPollMargin добавляется к wait, чтобы клиент не обрывал запрос раньше сервера.
	longPollMargin = 10 * time.Second
)
