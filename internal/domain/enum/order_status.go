package enum

import (
	"database/sql/driver"
	"encoding/json"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus int

const (
	// OrderStatusPending is an order awaiting online payment confirmation;
	// not yet visible to kitchen workflows.
	OrderStatusPending OrderStatus = 0
	// OrderStatusActive is a confirmed order still being served.
	OrderStatusActive OrderStatus = 1
	// OrderStatusClosed is a completed order.
	OrderStatusClosed OrderStatus = 2
	// OrderStatusCancelled is a terminally abandoned or voided order.
	OrderStatusCancelled OrderStatus = 3
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusActive:
		return "active"
	case OrderStatusClosed:
		return "closed"
	case OrderStatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// validOrderTransitions is the authoritative forward-only state machine:
// pending -> {active|closed|cancelled}, active -> {closed|cancelled},
// closed -> cancelled. No state ever re-enters pending.
var validOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusActive, OrderStatusClosed, OrderStatusCancelled},
	OrderStatusActive:    {OrderStatusClosed, OrderStatusCancelled},
	OrderStatusClosed:    {OrderStatusCancelled},
	OrderStatusCancelled: {},
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range validOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return len(validOrderTransitions[s]) == 0
}

// Mutable reports whether line items may still be added/removed/changed.
func (s OrderStatus) Mutable() bool {
	return s == OrderStatusPending || s == OrderStatusActive
}

func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		*s = OrderStatus(i)
		return nil
	}
	switch str {
	case "pending":
		*s = OrderStatusPending
	case "active":
		*s = OrderStatusActive
	case "closed":
		*s = OrderStatusClosed
	case "cancelled":
		*s = OrderStatusCancelled
	}
	return nil
}

func (s OrderStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *OrderStatus) Scan(value interface{}) error {
	if value == nil {
		*s = OrderStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = OrderStatus(v)
	case int:
		*s = OrderStatus(v)
	}
	return nil
}
