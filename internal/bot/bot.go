package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/letsssgooo/vkQuizBot/internal/client"
	"github.com/letsssgooo/vkQuizBot/internal/events/decoder"
	"github.com/letsssgooo/vkQuizBot/internal/events/fetcher"
)

// Transport — HTTP сессия, которой владеет бот.
type Transport interface {
	Open()
	Close() error
	Connected() bool
	Configured() bool
}

// Dispatcher принимает декодированные обновления по одному, в порядке получения.
// Dispatch не должен блокироваться надолго: следующий long poll запрос
// начнется только после обработки всей пачки. После Stop оставшиеся
// обновления пачки не доставляются.
type Dispatcher interface {
	Dispatch(ctx context.Context, update client.Update) error
}

// DispatchFunc позволяет использовать обычную функцию как Dispatcher.
type DispatchFunc func(ctx context.Context, update client.Update) error

func (f DispatchFunc) Dispatch(ctx context.Context, update client.Update) error {
	return f(ctx, update)
}

// DefaultErrorBackoff — минимальный интервал между запросами после ошибки.
const DefaultErrorBackoff = time.Second

// Bot реализует long poll бота VK: держит сессию, двигает курсор,
// обновляет сессию при failed и передает обновления в Dispatcher.
type Bot struct {
	transport  Transport
	fetcher    fetcher.Fetcher
	dispatcher Dispatcher
	log        *slog.Logger
	backoff    *rate.Limiter

	state atomic.Int32

	mu     sync.Mutex // защищает запуск и остановку
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBot создаёт нового бота.
// errorBackoff ограничивает частоту запросов после неудачных итераций
// (0 означает DefaultErrorBackoff, отрицательное значение — без ограничения).
func NewBot(
	transport Transport,
	f fetcher.Fetcher,
	dispatcher Dispatcher,
	log *slog.Logger,
	errorBackoff time.Duration,
) *Bot {
	if log == nil {
		log = slog.Default()
	}

	if errorBackoff == 0 {
		errorBackoff = DefaultErrorBackoff
	}

	limit := rate.Inf
	if errorBackoff > 0 {
		limit = rate.Every(errorBackoff)
	}

	return &Bot{
		transport:  transport,
		fetcher:    f,
		dispatcher: dispatcher,
		log:        log.With(slog.String("component", "poller")),
		backoff:    rate.NewLimiter(limit, 1),
	}
}

// State возвращает текущее состояние цикла опроса.
func (b *Bot) State() State {
	return State(b.state.Load())
}

func (b *Bot) setState(s State) {
	b.state.Store(int32(s))
}

// Start открывает HTTP сессию, получает long poll сессию и запускает цикл опроса.
// Без учетных данных бот остается неактивным и Start возвращает nil.
// Ошибка первого Bootstrap возвращается вызывающему: цикл в этом случае не запускается.
// Повторный вызов для запущенного бота ничего не делает.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return nil
	}

	if !b.transport.Configured() {
		b.log.Info("bot credentials are not configured, long poll is disabled")
		return nil
	}

	b.setState(StateStarting)
	b.transport.Open()

	if err := b.fetcher.Bootstrap(ctx); err != nil {
		_ = b.transport.Close()
		b.setState(StateStopped)

		return fmt.Errorf("failed to start bot: %w", err)
	}

	runID := uuid.NewString()
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	b.cancel = cancel
	b.done = make(chan struct{})
	b.setState(StatePolling)

	b.log.Info("long poll started", slog.String("run_id", runID), slog.Int64("ts", b.fetcher.Cursor()))

	go b.run(loopCtx, b.log.With(slog.String("run_id", runID)), b.done)

	return nil
}

// Stop останавливает цикл опроса, дожидается его завершения и закрывает
// HTTP сессию. Текущий long poll запрос отменяется. Безопасно вызывать повторно.
func (b *Bot) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		<-b.done

		b.cancel = nil
		b.done = nil

		b.log.Info("long poll stopped", slog.Int64("ts", b.fetcher.Cursor()))
	}

	b.setState(StateStopped)

	return b.transport.Close()
}

// run — цикл опроса. Остановка проверяется перед каждой итерацией
// и сразу после блокирующего запроса.
func (b *Bot) run(ctx context.Context, log *slog.Logger, done chan<- struct{}) {
	defer close(done)

	ok := true

	for {
		if ctx.Err() != nil {
			return
		}

		if !ok {
			if err := b.backoff.Wait(ctx); err != nil {
				return
			}
		}

		ok = b.tick(ctx, log)
	}
}

// tick выполняет одну итерацию опроса. Возвращает false, если итерация
// завершилась ошибкой и перед следующей нужна пауза.
func (b *Bot) tick(ctx context.Context, log *slog.Logger) bool {
	if b.fetcher.NeedsRefresh() {
		b.setState(StateRefreshing)

		if err := b.fetcher.Bootstrap(ctx); err != nil {
			if ctx.Err() == nil {
				log.Warn("failed to refresh long poll session", slog.String("error", err.Error()))
			}

			return false
		}

		b.setState(StatePolling)
		log.Info("long poll session refreshed", slog.Int64("ts", b.fetcher.Cursor()))
	}

	if !b.transport.Connected() {
		return false
	}

	raw, err := b.fetcher.Fetch(ctx)
	if ctx.Err() != nil {
		return true
	}

	if errors.Is(err, client.ErrSessionExpired) {
		log.Info("long poll session expired", slog.String("reason", err.Error()))
		return true
	}

	if err != nil {
		log.Warn("long poll request failed", slog.String("error", err.Error()))
		return false
	}

	updates := decoder.Decode(raw)
	if skipped := len(raw) - len(updates); skipped > 0 {
		log.Debug("updates skipped", slog.Int("count", skipped))
	}

	for i, update := range updates {
		if ctx.Err() != nil {
			log.Debug("stopped before the end of batch", slog.Int("undelivered", len(updates)-i))
			return true
		}

		if err = b.dispatcher.Dispatch(ctx, update); err != nil {
			log.Warn("failed to handle update",
				slog.Int64("message_id", update.Message.ID),
				slog.Int64("from_id", update.Message.FromID),
				slog.String("error", err.Error()),
			)
		}
	}

	return true
}
