package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/letsssgooo/vkQuizBot/internal/client"
)

// LongPollFetcher реализует Fetcher через Bots Long Poll API VK.
// Хранит параметры сессии (server, key, ts); писать в них может только
// цикл опроса, которому принадлежит LongPollFetcher.
type LongPollFetcher struct {
	client client.Client
	wait   int

	mu             sync.Mutex
	session        *client.LongPollServer
	refreshPending bool
}

// NewLongPollFetcher создает LongPollFetcher. wait — время ожидания
// long poll запроса в секундах (0 означает client.DefaultWait).
func NewLongPollFetcher(c client.Client, wait int) *LongPollFetcher {
	if wait <= 0 {
		wait = client.DefaultWait
	}

	return &LongPollFetcher{
		client: c,
		wait:   wait,
	}
}

// Bootstrap получает server, key и ts и заменяет ими текущую сессию целиком.
// При ошибке прежняя сессия считается недействительной, пока Bootstrap не пройдет успешно.
func (f *LongPollFetcher) Bootstrap(ctx context.Context) error {
	session, err := f.client.GetLongPollServer(ctx)
	if err != nil {
		f.mu.Lock()
		f.refreshPending = true
		f.mu.Unlock()

		return fmt.Errorf("bootstrap long poll session: %w", err)
	}

	f.mu.Lock()
	f.session = session
	f.refreshPending = false
	f.mu.Unlock()

	return nil
}

// NeedsRefresh сообщает, что перед следующим запросом нужно вызвать Bootstrap.
func (f *LongPollFetcher) NeedsRefresh() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.refreshPending
}

// Fetch выполняет один запрос act=a_check.
// Без открытой HTTP сессии или без параметров long poll возвращает пустой результат.
// Если сервер сообщил failed, помечает сессию для обновления и возвращает
// client.ErrSessionExpired. Курсор сдвигается только после успешного ответа
// и никогда не уменьшается.
func (f *LongPollFetcher) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	f.mu.Lock()
	pending := f.refreshPending
	var session client.LongPollServer
	if f.session != nil {
		session = *f.session
	}
	f.mu.Unlock()

	if pending || !f.client.Connected() || !session.Complete() {
		return nil, nil
	}

	result, err := f.client.CheckUpdates(ctx, session, f.wait)
	if errors.Is(err, client.ErrSessionExpired) {
		f.mu.Lock()
		f.refreshPending = true
		f.mu.Unlock()

		return nil, err
	}

	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if result.TS != nil && f.session != nil && *result.TS > f.session.TS {
		f.session.TS = *result.TS
	}
	f.mu.Unlock()

	return result.Updates, nil
}

// Cursor возвращает текущий курсор (ts); 0, если сессии еще нет.
func (f *LongPollFetcher) Cursor() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session == nil {
		return 0
	}

	return f.session.TS
}
