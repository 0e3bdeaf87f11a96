package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// IntentStatus represents the state of one payment-collection attempt.
// At most one intent per order ever reaches confirmed; any number of
// failed or superseded intents may exist.
type IntentStatus int

const (
	IntentStatusPending   IntentStatus = 0
	IntentStatusConfirmed IntentStatus = 1
	IntentStatusFailed    IntentStatus = 2
)

func (s IntentStatus) String() string {
	switch s {
	case IntentStatusConfirmed:
		return "confirmed"
	case IntentStatusFailed:
		return "failed"
	}
	return "pending"
}

func (s IntentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *IntentStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = IntentStatus(i)
		return nil
	}
	switch str {
	case "confirmed":
		*s = IntentStatusConfirmed
	case "failed":
		*s = IntentStatusFailed
	default:
		*s = IntentStatusPending
	}
	return nil
}

func (s IntentStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *IntentStatus) Scan(value interface{}) error {
	if value == nil {
		*s = IntentStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = IntentStatus(v)
	case int:
		*s = IntentStatus(v)
	}
	return nil
}
