package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// OrderSource distinguishes staff counter-ordering from customer
// self-service (QR) ordering. The source decides the post-payment
// status: QR orders stay active (kitchen still needs them), counter
// orders close immediately.
type OrderSource int

const (
	OrderSourceCounter OrderSource = 0
	OrderSourceQR      OrderSource = 1
)

func (s OrderSource) String() string {
	if s == OrderSourceQR {
		return "qr"
	}
	return "counter"
}

// PaidStatus returns the order status an online payment settles into.
func (s OrderSource) PaidStatus() OrderStatus {
	if s == OrderSourceQR {
		return OrderStatusActive
	}
	return OrderStatusClosed
}

func (s OrderSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *OrderSource) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = OrderSource(i)
		return nil
	}
	if str == "qr" {
		*s = OrderSourceQR
	} else {
		*s = OrderSourceCounter
	}
	return nil
}

func (s OrderSource) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *OrderSource) Scan(value interface{}) error {
	if value == nil {
		*s = OrderSourceCounter
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = OrderSource(v)
	case int:
		*s = OrderSource(v)
	}
	return nil
}
