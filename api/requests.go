package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Fixed response messages.
const (
	msgUnauthorized = "Unauthorized: invalid or missing API key"
	msgRateLimited  = "Too many requests, please try again later."
	msgInvalidJSON  = "Invalid JSON body"
	msgNotObject    = "Request body must be a JSON object"
	msgBodyTooLarge = "Request body too large"
	msgNotFound     = "Route not found"
	msgInternal     = "Internal server error"
)

// envelope is the shape of every response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type registerResponse struct {
	envelope
	DeviceID string `json:"deviceId"`
	Created  bool   `json:"created"`
}

type rootResponse struct {
	envelope
	Version string `json:"version"`
}

type sendRequest struct {
	BotToken string `json:"botToken"`
	ChatID   chatID `json:"chatId"`
	Message  string `json:"message"`
}

type registerRequest struct {
	DeviceID string `json:"deviceId"`
	BotToken string `json:"botToken"`
	ChatID   chatID `json:"chatId"`
}

type processRequest struct {
	DeviceID  string       `json:"deviceId"`
	Sender    string       `json:"sender"`
	Message   string       `json:"message"`
	Timestamp *epochMillis `json:"timestamp"`
}

// chatID accepts a JSON string or number.
type chatID string

func (c *chatID) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = chatID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	v, err := parseInteger(n.String())
	if err != nil {
		return err
	}
	*c = chatID(strconv.FormatInt(v, 10))
	return nil
}

// maxEpochMillis is the largest instant a JavaScript Date can hold.
const maxEpochMillis = 8640000000000000

// epochMillis accepts a JSON number or a string of digits.
type epochMillis int64

func (m *epochMillis) UnmarshalJSON(b []byte) error {
	s := string(b)
	if bytes.HasPrefix(b, []byte(`"`)) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
	}
	v, err := parseInteger(s)
	if err != nil {
		return err
	}
	if v < 0 || v > maxEpochMillis {
		return fmt.Errorf("api: timestamp %d out of range", v)
	}
	*m = epochMillis(v)
	return nil
}

// parseInteger accepts any JSON number literal with an integral value that
// fits in an int64, so 1e3 and 1000.0 both yield 1000.
func parseInteger(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("api: %q is not a number", s)
	}
	if !r.IsInt() || !r.Num().IsInt64() {
		return 0, fmt.Errorf("api: %q is not a 64-bit integer", s)
	}
	return r.Num().Int64(), nil
}

func (m *epochMillis) int64Ptr() *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}
