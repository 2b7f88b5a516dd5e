package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"judgeresult/internal/result/model"
	appErr "judgeresult/pkg/errors"
)

type rawSpec struct {
	Op       Op                `json:"op"`
	Field    Field             `json:"field,omitempty"`
	Values   []json.RawMessage `json:"values,omitempty"`
	From     json.RawMessage   `json:"from,omitempty"`
	To       json.RawMessage   `json:"to,omitempty"`
	Children []Spec            `json:"children,omitempty"`
}

// UnmarshalJSON decodes values with the Go type of their field, so a decoded tree
// evaluates exactly like the one that was encoded.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw rawSpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Spec{Op: raw.Op, Field: raw.Field, Children: raw.Children}

	hasValues := len(raw.Values) > 0 || len(raw.From) > 0 || len(raw.To) > 0
	if hasValues {
		info, ok := fields[raw.Field]
		if !ok {
			return fmt.Errorf("unknown field %q", raw.Field)
		}
		if raw.Values != nil {
			out.Values = make([]any, 0, len(raw.Values))
		}
		for _, rv := range raw.Values {
			v, err := decodeValue(info.kind, rv)
			if err != nil {
				return fmt.Errorf("field %s: %w", raw.Field, err)
			}
			out.Values = append(out.Values, v)
		}
		var err error
		if out.From, err = decodeValue(info.kind, raw.From); err != nil {
			return fmt.Errorf("field %s: %w", raw.Field, err)
		}
		if out.To, err = decodeValue(info.kind, raw.To); err != nil {
			return fmt.Errorf("field %s: %w", raw.Field, err)
		}
	} else if raw.Op == OpIn {
		out.Values = []any{}
	}

	*s = out
	return nil
}

func decodeValue(k kind, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch k {
	case kindInt:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		return n, nil
	case kindStatus:
		var st model.Status
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, err
		}
		return st, nil
	case kindString:
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, err
		}
		return str, nil
	case kindTime:
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}
	return nil, fmt.Errorf("unsupported value kind")
}

// Parse decodes and validates a JSON encoded tree. Empty input is All.
func Parse(data []byte) (Spec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return All(), nil
	}
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return Spec{}, appErr.Wrapf(err, appErr.InvalidPredicate, "invalid result filter: %v", err)
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Key returns a stable textual form of s, usable as a cache or dedup key.
func (s Spec) Key() string {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%#v", s)
	}
	return string(data)
}
