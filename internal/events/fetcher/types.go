package fetcher

import (
	"context"
	"encoding/json"
)

// Fetcher определяет основной интерфейс для получения обновлений через long poll.
type Fetcher interface {
	// Bootstrap получает новую long poll сессию, полностью заменяя предыдущую.
	Bootstrap(ctx context.Context) error

	// NeedsRefresh сообщает, что сессия истекла и перед следующим запросом нужен Bootstrap.
	NeedsRefresh() bool

	// Fetch выполняет один long poll запрос и возвращает сырые обновления.
	Fetch(ctx context.Context) ([]json.RawMessage, error)

	// Cursor возвращает текущий курсор (ts).
	Cursor() int64
}
