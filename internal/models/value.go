// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ValueKind discriminates the payload of a sensor Value.
type ValueKind int

// Sensor value kinds.
const (
	KindNull ValueKind = iota
	KindNumber
	KindBool
	KindString
	KindTime
)

// Value is one sensor reading from a vehicle state snapshot. The upstream
// schema is open-ended: readings arrive as plain JSON scalars or as a
// one-level single-field wrapper around a scalar. Normalization happens
// here, at the deserialization boundary, so readers never unwrap.
type Value struct {
	kind ValueKind
	num  float64
	b    bool
	str  string
	t    time.Time
}

// NumberValue constructs a numeric Value.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// BoolValue constructs a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// StringValue constructs a string Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// TimeValue constructs a timestamp Value.
func TimeValue(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Kind returns the value's kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value carries no payload.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float64 returns the numeric payload. ok is false for other kinds.
func (v Value) Float64() (float64, bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean payload. ok is false for other kinds.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Str returns the string payload. ok is false for other kinds.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Time returns the timestamp payload. ok is false for other kinds.
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindTime }

// String renders the value for logs and API responses.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.num)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindString:
		return v.str
	case KindTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// UnmarshalJSON normalizes a raw scalar, or a single-field object
// wrapping a scalar, into a tagged Value. Timestamp-shaped strings are
// promoted to KindTime.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = normalize(raw)
	return nil
}

// MarshalJSON renders the underlying scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindString:
		return json.Marshal(v.str)
	case KindTime:
		return json.Marshal(v.t.Format(time.RFC3339))
	default:
		return []byte("null"), nil
	}
}

// normalize converts decoded JSON into a Value, unwrapping one level of
// single-field envelope if present.
func normalize(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return Value{}
	case float64:
		return NumberValue(x)
	case bool:
		return BoolValue(x)
	case string:
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return TimeValue(t)
		}
		return StringValue(x)
	case map[string]interface{}:
		// Single-field envelope around a scalar; anything else is
		// opaque and dropped to null.
		if len(x) == 1 {
			for _, inner := range x {
				if _, isMap := inner.(map[string]interface{}); !isMap {
					return normalize(inner)
				}
			}
		}
		return Value{}
	default:
		return Value{}
	}
}
