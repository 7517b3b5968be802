package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PublishState is the publication flag of a Work. Records written before the
// flag existed carry no value and are shown publicly; new writes always
// store an explicit true or false.
type PublishState int8

const (
	PublishUnspecified PublishState = iota
	Published
	Unpublished
)

// PublishStateOf converts an explicit boolean.
func PublishStateOf(published bool) PublishState {
	if published {
		return Published
	}
	return Unpublished
}

// Visible reports whether anonymous visitors may see the record.
func (p PublishState) Visible() bool { return p != Unpublished }

func (p PublishState) String() string {
	switch p {
	case Published:
		return "published"
	case Unpublished:
		return "unpublished"
	default:
		return "legacy"
	}
}

func (p PublishState) MarshalJSON() ([]byte, error) {
	switch p {
	case Published:
		return []byte("true"), nil
	case Unpublished:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (p *PublishState) UnmarshalJSON(b []byte) error {
	switch strings.Trim(string(bytes.TrimSpace(b)), `"`) {
	case "true":
		*p = Published
	case "false":
		*p = Unpublished
	case "null", "":
		*p = PublishUnspecified
	default:
		return fmt.Errorf("published: invalid value %s", b)
	}
	return nil
}

// Timestamp is an epoch-millisecond instant that also accepts ISO-like date
// strings. Values that cannot be parsed decode without error, report
// Valid() == false and are written back exactly as they were read.
type Timestamp struct {
	ms    int64
	valid bool
	raw   json.RawMessage
}

func TimestampAt(t time.Time) Timestamp {
	return Timestamp{ms: t.UnixMilli(), valid: true}
}

func TimestampMillis(ms int64) Timestamp {
	return Timestamp{ms: ms, valid: true}
}

func (t Timestamp) Valid() bool { return t.valid }

func (t Timestamp) Millis() int64 { return t.ms }

func (t Timestamp) Time() time.Time { return time.UnixMilli(t.ms) }

// Due reports whether the instant is valid and not after now.
func (t Timestamp) Due(now time.Time) bool {
	return t.valid && t.ms <= now.UnixMilli()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if len(t.raw) > 0 {
		return t.raw, nil
	}
	if !t.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.ms, 10)), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	raw := append(json.RawMessage(nil), bytes.TrimSpace(b)...)
	*t = ParseTimestamp(raw)
	return nil
}

// ParseTimestamp decodes a JSON number or string. It never fails; check
// Valid on the result.
func ParseTimestamp(raw json.RawMessage) Timestamp {
	out := Timestamp{raw: raw}
	if len(raw) == 0 || string(raw) == "null" {
		out.raw = nil
		return out
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return out
		}
		if ms, ok := parseTimeString(s); ok {
			out.ms, out.valid = ms, true
		}
		return out
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return out
	}
	out.ms, out.valid = int64(f), true
	out.raw = nil
	return out
}

var layoutsWithZone = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

var layoutsLocal = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
}

func parseTimeString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	for _, layout := range layoutsWithZone {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	for _, layout := range layoutsLocal {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UnixMilli(), true
		}
	}
	// date-only forms are UTC midnight
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}

// Categories holds the category tags of a Work. The manifest stores either a
// whitespace-separated string or a list; the value is written back in the
// shape it was read, since the public grid filters on the raw attribute.
type Categories struct {
	raw  json.RawMessage
	tags []string
}

// CategoriesOf builds a new value stored as one space-separated string.
func CategoriesOf(tags ...string) Categories {
	joined := strings.Join(tags, " ")
	if strings.TrimSpace(joined) == "" {
		return Categories{}
	}
	raw, _ := json.Marshal(joined)
	return Categories{raw: raw, tags: splitTags(joined)}
}

// Tags returns the individual tags: a string is split on whitespace and
// commas, list elements are kept whole.
func (c Categories) Tags() []string { return c.tags }

func (c Categories) IsZero() bool { return len(c.raw) == 0 }

func (c Categories) Has(tag string) bool {
	for _, t := range c.tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func (c Categories) MarshalJSON() ([]byte, error) {
	if len(c.raw) == 0 {
		return []byte("null"), nil
	}
	return c.raw, nil
}

func (c *Categories) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*c = Categories{}
		return nil
	}
	raw := append(json.RawMessage(nil), b...)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Categories{raw: raw, tags: splitTags(s)}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("cats: %w", err)
	}
	tags := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}
	*c = Categories{raw: raw, tags: tags}
	return nil
}

func splitTags(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
