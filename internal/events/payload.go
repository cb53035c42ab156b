package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Well-known payload fields
const (
	FieldReferenceID   = "reference_id"
	FieldReferenceType = "reference_type"
	FieldAmount        = "amount"
	FieldDescription   = "description"
	FieldDate          = "date"
)

// Payload is the flat field map carried by an event
type Payload map[string]any

// String returns a field rendered as a string. Numbers are formatted without
// exponent so reference ids like 1001 stay readable.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case decimal.Decimal:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

// ReferenceID returns the upstream reference of the event, if any
func (p Payload) ReferenceID() string {
	s, _ := p.String(FieldReferenceID)
	return strings.TrimSpace(s)
}

// Decimal returns a numeric field. ok is false when the field is absent;
// err is set when it is present but not a number.
func (p Payload) Decimal(key string) (value decimal.Decimal, ok bool, err error) {
	v, present := p[key]
	if !present || v == nil {
		return decimal.Zero, false, nil
	}
	d, isNum := AsDecimal(v)
	if !isNum {
		return decimal.Zero, true, fmt.Errorf("field %q is not a number: %v", key, v)
	}
	return d, true, nil
}

// Date returns the business date of the event, if the payload carries one
func (p Payload) Date() (time.Time, bool) {
	v, ok := p[FieldDate]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// Clone returns a shallow copy that can be snapshotted into execution logs
func (p Payload) Clone() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// AsDecimal converts the numeric representations that reach the engine
// (JSON numbers, YAML ints, decimal values and numeric strings).
func AsDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, false
		}
		return *t, true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case uint:
		return decimal.NewFromInt(int64(t)), true
	case uint64:
		return decimal.NewFromInt(int64(t)), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// IsNumber reports whether v is a numeric type (strings excluded)
func IsNumber(v any) bool {
	switch v.(type) {
	case string, nil, bool:
		return false
	}
	_, ok := AsDecimal(v)
	return ok
}
