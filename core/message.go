package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrMalformedEvent is returned for feed messages that are not valid JSON or
// lack a required field
var ErrMalformedEvent = errors.New("malformed event message")

var validate = validator.New()

// eventMessage is the wire form of an Event on the feed. Pointers distinguish
// a missing field from a zero value.
type eventMessage struct {
	Timestamp json.RawMessage `json:"timestamp" validate:"required"`
	Hostname  *string         `json:"hostname" validate:"required"`
	Tag       *string         `json:"tag" validate:"required"`
	Message   *string         `json:"message" validate:"required"`
	Priority  *int            `json:"priority" validate:"required"`
	SourceIP  *string         `json:"source_ip" validate:"required"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
}

// DecodeEvent parses one feed message. Every failure wraps ErrMalformedEvent.
func DecodeEvent(data []byte) (*Event, error) {
	var msg eventMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := validate.Struct(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ts, err := parseTimestamp(msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	return &Event{
		ID:        uuid.New().String(),
		Timestamp: ts,
		Hostname:  *msg.Hostname,
		Tag:       *msg.Tag,
		Message:   *msg.Message,
		Priority:  *msg.Priority,
		SourceIP:  *msg.SourceIP,
	}, nil
}

// EncodeEvent produces the feed wire form of an event
func EncodeEvent(e *Event) ([]byte, error) {
	return json.Marshal(struct {
		Timestamp string `json:"timestamp"`
		Hostname  string `json:"hostname"`
		Tag       string `json:"tag"`
		Message   string `json:"message"`
		Priority  int    `json:"priority"`
		SourceIP  string `json:"source_ip"`
	}{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Hostname:  e.Hostname,
		Tag:       e.Tag,
		Message:   e.Message,
		Priority:  e.Priority,
		SourceIP:  e.SourceIP,
	})
}

// parseTimestamp accepts an ISO-8601 string or epoch seconds (milliseconds
// when the value is too large to be seconds)
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return time.Time{}, errors.New("timestamp is null")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		s = strings.TrimSpace(s)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	f, err := n.Float64()
	if err != nil || f < 0 || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("invalid epoch timestamp %s", n)
	}
	if f > 1e12 {
		f /= 1000
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
