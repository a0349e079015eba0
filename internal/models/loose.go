package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Spreadsheet cells come back with whatever type the sheet guessed. The loose
// types below decode any JSON scalar without failing the whole document.

// LooseString decodes strings, numbers and booleans as text. Objects, arrays
// and null decode to "".
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*s = ""
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = LooseString(v)
	case 't', 'f':
		*s = LooseString(data)
	case 'n', '{', '[':
		*s = ""
	default:
		*s = LooseString(data)
	}
	return nil
}

func (s LooseString) String() string { return string(s) }

// LooseStrings decodes a JSON array of scalars. Anything that is not an array
// decodes to an empty list.
type LooseStrings []LooseString

func (l *LooseStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		*l = nil
		return nil
	}
	var items []LooseString
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// Strings returns the trimmed, non-empty values.
func (l LooseStrings) Strings() []string {
	out := make([]string, 0, len(l))
	for _, v := range l {
		if s := strings.TrimSpace(string(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LooseInt decodes numbers and numeric strings. Everything else is zero.
// Values outside the int32 range saturate.
type LooseInt int

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	var ls LooseString
	if err := ls.UnmarshalJSON(data); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(ls)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = 0
		return nil
	}
	*n = LooseInt(min(max(f, math.MinInt32), math.MaxInt32))
	return nil
}

// OptionalInt is set only when the JSON value is a number. Numeric strings
// do not count.
type OptionalInt struct {
	Value int
	Valid bool
}

func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*o = OptionalInt{}
	if len(data) == 0 || !(data[0] == '-' || (data[0] >= '0' && data[0] <= '9')) {
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	*o = OptionalInt{Value: int(f), Valid: true}
	return nil
}

func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(o.Value)), nil
}

// IntValue returns a set OptionalInt.
func IntValue(v int) OptionalInt {
	return OptionalInt{Value: v, Valid: true}
}
