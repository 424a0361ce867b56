// FilePath: internal/models/models.time.go
package models

import (
	"strings"
	"time"
)

// ApiTime wraps time.Time to accept both RFC3339 timestamps and the
// zone-less "2006-01-02T15:04:05" format sent by mobile clients. Zone-less
// values are interpreted as UTC.
type ApiTime struct {
	time.Time
}

const zonelessLayout = "2006-01-02T15:04:05"

func (t *ApiTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.Parse(zonelessLayout, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

func (t ApiTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}
