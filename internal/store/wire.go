package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/watzon/clickloop/internal/actions"
)

// object is one decoded JSON object with its keys still raw.
type object map[string]json.RawMessage

func (o object) has(key string) bool {
	raw, ok := o[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (o object) require(keys ...string) error {
	for _, k := range keys {
		if !o.has(k) {
			return formatErr(fmt.Sprintf("missing required key %q", k), nil)
		}
	}
	return nil
}

func (o object) decode(key string, dst any) error {
	if err := json.Unmarshal(o[key], dst); err != nil {
		return formatErr(fmt.Sprintf("key %q has the wrong type", key), err)
	}
	return nil
}

// optional decodes key into dst when present, leaving dst untouched otherwise.
func (o object) optional(key string, dst any) error {
	if !o.has(key) {
		return nil
	}
	return o.decode(key, dst)
}

func (o object) actions() ([]actions.Action, error) {
	var raw []json.RawMessage
	if err := o.decode("actions", &raw); err != nil {
		return nil, err
	}
	out := make([]actions.Action, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &out[i]); err != nil {
			return nil, formatErr(fmt.Sprintf("action %d", i), err)
		}
	}
	return out, nil
}

// splitDocument returns the objects of a top-level array, or the single
// top-level object with single set.
func splitDocument(data []byte) (objs []object, single bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, formatErr("file is empty", nil)
	}

	switch trimmed[0] {
	case '{':
		var obj object
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, false, formatErr("not valid JSON", err)
		}
		return []object{obj}, true, nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, false, formatErr("not valid JSON", err)
		}
		objs = make([]object, len(raw))
		for i, r := range raw {
			if err := json.Unmarshal(r, &objs[i]); err != nil || objs[i] == nil {
				return nil, false, formatErr(fmt.Sprintf("entry %d is not an object", i), err)
			}
		}
		return objs, false, nil
	default:
		if !json.Valid(trimmed) {
			return nil, false, formatErr("not valid JSON", nil)
		}
		return nil, false, formatErr("expected an object or a list of objects", nil)
	}
}

func wireActions(acts []actions.Action) [][]any {
	out := make([][]any, len(acts))
	for i, a := range acts {
		out[i] = a.Wire()
	}
	return out
}

func entryErr(i int, err error) error {
	return &FormatError{Reason: fmt.Sprintf("entry %d", i), Err: err}
}
