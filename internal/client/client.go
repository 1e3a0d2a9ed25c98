package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// errClosed возвращается doRequest, если HTTP сессия закрыта до отправки запроса.
var errClosed = errors.New("http session is closed")

// HTTPClient реализует Client через HTTP API VK.
// Одна HTTP сессия создается в Open и освобождается в Close.
type HTTPClient struct {
	creds   Credentials
	apiHost string
	limiter *rate.Limiter

	mu         sync.RWMutex
	httpClient *http.Client
}

// NewHTTPClient создаёт нового HTTP клиента VK.
// apiHost — адрес методов API (пустая строка означает DefaultAPIHost),
// rps — ограничение на число вызовов методов в секунду (0 — без ограничения).
func NewHTTPClient(creds Credentials, apiHost string, rps int) *HTTPClient {
	if apiHost == "" {
		apiHost = DefaultAPIHost
	}

	if !strings.HasSuffix(apiHost, "/") {
		apiHost += "/"
	}

	c := &HTTPClient{
		creds:   creds,
		apiHost: apiHost,
	}

	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}

	return c
}

// Open создаёт HTTP сессию. Повторный вызов ничего не делает.
func (c *HTTPClient) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.httpClient != nil {
		return
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	c.httpClient = &http.Client{Transport: transport}
}

// Close освобождает HTTP сессию. Безопасно вызывать повторно
// и без предшествующего Open.
func (c *HTTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.httpClient == nil {
		return nil
	}

	c.httpClient.CloseIdleConnections()
	c.httpClient = nil

	return nil
}

// Connected сообщает, открыта ли HTTP сессия.
func (c *HTTPClient) Connected() bool {
	return c.session() != nil
}

// Configured сообщает, заданы ли учетные данные бота.
func (c *HTTPClient) Configured() bool {
	return c.creds.Configured()
}

func (c *HTTPClient) session() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.httpClient
}

// GetLongPollServer получает адрес long poll сервера, ключ и начальный курсор
// методом groups.getLongPollServer.
// Возвращает ErrUpstreamUnavailable, если ответ не содержит пригодных данных.
func (c *HTTPClient) GetLongPollServer(ctx context.Context) (*LongPollServer, error) {
	params := url.Values{}
	params.Set("access_token", c.creds.AccessToken)
	params.Set("group_id", strconv.FormatInt(c.creds.GroupID, 10))

	ctx, cancelFunc := context.WithTimeout(ctx, timeoutBootstrap)
	defer cancelFunc()

	rawResp, err := c.doRequest(ctx, "groups.getLongPollServer", params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	if len(rawResp) == 0 || string(rawResp) == "null" {
		return nil, fmt.Errorf("%w: empty response", ErrUpstreamUnavailable)
	}

	var resp struct {
		Key    string          `json:"key"`
		Server string          `json:"server"`
		TS     json.RawMessage `json:"ts"`
	}

	if err = json.Unmarshal(rawResp, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	ts, err := ParseInt(resp.TS)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ts: %w", ErrUpstreamUnavailable, err)
	}

	server := &LongPollServer{
		Server: resp.Server,
		Key:    resp.Key,
		TS:     ts,
	}

	if !server.Complete() {
		return nil, fmt.Errorf("%w: incomplete response", ErrUpstreamUnavailable)
	}

	return server, nil
}

// CheckUpdates выполняет запрос act=a_check к long poll серверу.
// Если сервер вернул failed, возвращает результат с заполненным Failed
// и ошибку ErrSessionExpired. Без открытой сессии возвращает пустой результат.
func (c *HTTPClient) CheckUpdates(
	ctx context.Context,
	server LongPollServer,
	wait int,
) (*PollResult, error) {
	hc := c.session()
	if hc == nil || !server.Complete() {
		return &PollResult{}, nil
	}

	params := url.Values{}
	params.Set("act", "a_check")
	params.Set("key", server.Key)
	params.Set("ts", strconv.FormatInt(server.TS, 10))
	params.Set("wait", strconv.Itoa(wait))

	serverURL := server.Server
	if !strings.Contains(serverURL, "://") {
		serverURL = "https://" + serverURL
	}

	ctx, cancelFunc := context.WithTimeout(ctx, time.Duration(wait)*time.Second+longPollMargin)
	defer cancelFunc()

	data, err := c.get(ctx, hc, serverURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp struct {
		TS      json.RawMessage   `json:"ts"`
		Updates []json.RawMessage `json:"updates"`
		Failed  json.RawMessage   `json:"failed"`
	}

	if err = json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode long poll response: %w", err)
	}

	result := &PollResult{}

	if len(resp.Failed) != 0 && string(resp.Failed) != "null" {
		code, err := ParseInt(resp.Failed)
		if err != nil {
			code = -1
		}

		result.Failed = int(code)

		return result, fmt.Errorf("%w: failed=%s", ErrSessionExpired, resp.Failed)
	}

	if ts, err := ParseInt(resp.TS); err == nil {
		result.TS = &ts
	}

	result.Updates = resp.Updates

	return result, nil
}

// SendMessage отправляет сообщение методом messages.send.
// Без открытой сессии или учетных данных ничего не делает.
// Повторных попыток не выполняет: ошибка оборачивает ErrSendFailed.
func (c *HTTPClient) SendMessage(ctx context.Context, msg OutboundMessage) error {
	if !c.Configured() {
		return nil
	}

	params := url.Values{}
	params.Set("access_token", c.creds.AccessToken)
	params.Set("user_id", strconv.FormatInt(msg.UserID, 10))
	params.Set("random_id", strconv.FormatInt(int64(msg.RandomID), 10))
	params.Set("message", msg.Text)

	ctx, cancelFunc := context.WithTimeout(ctx, timeoutSend)
	defer cancelFunc()

	rawResp, err := c.doRequest(ctx, "messages.send", params)
	if errors.Is(err, errClosed) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	if len(rawResp) == 0 || string(rawResp) == "null" {
		return fmt.Errorf("%w: no confirmation for user %d", ErrSendFailed, msg.UserID)
	}

	return nil
}

// doRequest выполняет GET запрос к методу VK API.
// Возвращает поле response из ответа или errClosed, если сессия закрыта
// до отправки запроса (в том числе пока запрос ждал лимитер).
func (c *HTTPClient) doRequest(
	ctx context.Context,
	method string,
	params url.Values,
) (json.RawMessage, error) {
	if c.session() == nil {
		return nil, errClosed
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	hc := c.session()
	if hc == nil {
		return nil, errClosed
	}

	if params.Get("v") == "" {
		params.Set("v", APIVersion)
	}

	data, err := c.get(ctx, hc, c.apiHost+method+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var result struct {
		Response json.RawMessage `json:"response"`
		Error    *APIError       `json:"error"`
	}

	if err = json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response of %s: %w", method, err)
	}

	if result.Error != nil {
		return nil, result.Error
	}

	return result.Response, nil
}

// get выполняет GET запрос и возвращает тело ответа.
func (c *HTTPClient) get(ctx context.Context, hc *http.Client, link string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(request)
	if err != nil {
		// в query лежит access_token, в логи он попасть не должен
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL, _, _ = strings.Cut(urlErr.URL, "?")
		}

		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
