package decoder

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/letsssgooo/vkQuizBot/internal/client"
)

// rawUpdate — обновление в том виде, в каком его присылает long poll сервер.
type rawUpdate struct {
	Type    string          `json:"type"`
	EventID json.RawMessage `json:"event_id"`
	GroupID json.RawMessage `json:"group_id"`
	Object  *struct {
		Message *rawMessage `json:"message"`
	} `json:"object"`
}

type rawMessage struct {
	ID     json.RawMessage `json:"id"`
	FromID json.RawMessage `json:"from_id"`
	PeerID json.RawMessage `json:"peer_id"`
	Text   json.RawMessage `json:"text"`
	Date   json.RawMessage `json:"date"`
}

// Decode преобразует сырые обновления в client.Update.
// Пропускает обновления не типа message_new и записи с некорректными
// id или from_id; порядок оставшихся сохраняется. Функция чистая:
// повторный вызов на тех же данных дает тот же результат.
func Decode(raw []json.RawMessage) []client.Update {
	updates := make([]client.Update, 0, len(raw))

	for _, item := range raw {
		update, ok := decodeOne(item)
		if !ok {
			continue
		}

		updates = append(updates, update)
	}

	return updates
}

// decodeOne разбирает одно обновление. ok == false означает, что запись пропускается.
func decodeOne(item json.RawMessage) (client.Update, bool) {
	var u rawUpdate
	if err := json.Unmarshal(item, &u); err != nil {
		return client.Update{}, false
	}

	if u.Type != client.UpdateTypeMessageNew || u.Object == nil || u.Object.Message == nil {
		return client.Update{}, false
	}

	msg := u.Object.Message

	id, err := client.ParseInt(msg.ID)
	if err != nil {
		return client.Update{}, false
	}

	fromID, err := client.ParseInt(msg.FromID)
	if err != nil {
		return client.Update{}, false
	}

	text, ok := decodeText(msg.Text)
	if !ok {
		return client.Update{}, false
	}

	// необязательные поля: при ошибке остаются нулевыми
	peerID, _ := client.ParseInt(msg.PeerID)
	date, _ := client.ParseInt(msg.Date)
	groupID, _ := client.ParseInt(u.GroupID)

	var eventID string
	_ = json.Unmarshal(u.EventID, &eventID)

	return client.Update{
		Type:    u.Type,
		EventID: eventID,
		GroupID: groupID,
		Message: client.Message{
			ID:     id,
			FromID: fromID,
			PeerID: peerID,
			Text:   text,
			Date:   date,
		},
	}, true
}

// decodeText возвращает текст сообщения. Отсутствующий текст — пустая строка,
// числа и логические значения берутся как есть, объекты и массивы недопустимы.
func decodeText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}

		return s, true
	case '{', '[':
		return "", false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}

	switch v := v.(type) {
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return string(raw), true
	}

	return "", false
}
