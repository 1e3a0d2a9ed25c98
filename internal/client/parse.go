package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var errNotInteger = errors.New("value is not an integer")

// ParseInt приводит JSON значение к int64.
// VK присылает числа то числами, то строками ("ts": "100"), поэтому
// принимаются оба варианта. null, дробные числа и прочие типы — ошибка.
func ParseInt(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errNotInteger
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}

		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotInteger, s)
		}

		return n, nil
	}

	var num json.Number

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if err := dec.Decode(&num); err != nil {
		return 0, fmt.Errorf("%w: %s", errNotInteger, raw)
	}

	if n, err := num.Int64(); err == nil {
		return n, nil
	}

	f, err := num.Float64()
	// float64(math.MaxInt64) округляется до 2^63, поэтому граница задана явно
	if err != nil || f != math.Trunc(f) || f >= 0x1p63 || f < -0x1p63 {
		return 0, fmt.Errorf("%w: %s", errNotInteger, raw)
	}

	return int64(f), nil
}
