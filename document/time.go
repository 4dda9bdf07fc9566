package document

import (
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime attempts the timestamp layouts seen across patient exports and
// reports ok=false on anything it cannot parse. Malformed timestamps are a
// missing sentinel, never an error.
func ParseTime(value interface{}) (time.Time, bool) {
	s, ok := value.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders a parsed timestamp the way tables display it.
func FormatTime(ts time.Time) string {
	return ts.Format("2006-01-02 15:04:05")
}

// Timestamp is a table cell timestamp. Invalid means the source field was
// absent or unparseable; such rows either sort first or get dropped,
// depending on the table's rules.
type Timestamp struct {
	time.Time
	Valid bool
}

// ParseTimestamp coerces a raw field value into a Timestamp.
func ParseTimestamp(value interface{}) Timestamp {
	ts, ok := ParseTime(value)
	return Timestamp{Time: ts, Valid: ok}
}

func (t Timestamp) String() string {
	if !t.Valid {
		return ""
	}
	return FormatTime(t.Time)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// Less orders timestamps ascending with invalid ones first.
func (t Timestamp) Less(other Timestamp) bool {
	if t.Valid != other.Valid {
		return !t.Valid
	}
	return t.Time.Before(other.Time)
}
