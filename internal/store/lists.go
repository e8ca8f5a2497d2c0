package store

import (
	"fmt"

	"github.com/watzon/clickloop/internal/actions"
)

// listRecord is the wire shape of one entry of a replay file.
type listRecord struct {
	Name     string  `json:"name" yaml:"name"`
	Actions  [][]any `json:"actions" yaml:"actions"`
	Repeat   int     `json:"repeat" yaml:"repeat"`
	Sequence int     `json:"sequence" yaml:"sequence"`
	Interval int     `json:"interval" yaml:"interval"`
	Active   bool    `json:"active" yaml:"active"`
}

// singleRecord is the wire shape of an exported editor list.
type singleRecord struct {
	Name    string  `json:"name" yaml:"name"`
	Actions [][]any `json:"actions" yaml:"actions"`
}

// DecodeLists decodes a replay file: a list of entries with name, actions,
// repeat and sequence (interval defaults to 0, active to true), or a single
// {name, actions} object which becomes one list with default policy.
func DecodeLists(data []byte) ([]*actions.List, error) {
	objs, single, err := splitDocument(data)
	if err != nil {
		return nil, err
	}
	if single {
		l, err := decodeSingle(objs[0])
		if err != nil {
			return nil, err
		}
		return []*actions.List{l}, nil
	}

	lists := make([]*actions.List, 0, len(objs))
	for i, obj := range objs {
		l, err := decodeEntry(obj)
		if err != nil {
			return nil, entryErr(i, err)
		}
		lists = append(lists, l)
	}
	return lists, nil
}

// DecodeList decodes a single {name, actions} object.
func DecodeList(data []byte) (*actions.List, error) {
	objs, single, err := splitDocument(data)
	if err != nil {
		return nil, err
	}
	if !single {
		return nil, formatErr("expected a single {name, actions} object", nil)
	}
	return decodeSingle(objs[0])
}

func decodeSingle(obj object) (*actions.List, error) {
	if err := obj.require("name", "actions"); err != nil {
		return nil, err
	}
	policy := actions.Policy{Repeat: actions.DefaultRepeat, Active: true}
	if err := obj.decode("name", &policy.Name); err != nil {
		return nil, err
	}
	for key, dst := range map[string]any{
		"repeat":   &policy.Repeat,
		"sequence": &policy.Sequence,
		"interval": &policy.Interval,
		"active":   &policy.Active,
	} {
		if err := obj.optional(key, dst); err != nil {
			return nil, err
		}
	}
	return build(obj, policy)
}

func decodeEntry(obj object) (*actions.List, error) {
	if err := obj.require("name", "actions", "repeat", "sequence"); err != nil {
		return nil, err
	}
	policy := actions.Policy{Active: true}
	if err := obj.decode("name", &policy.Name); err != nil {
		return nil, err
	}
	if err := obj.decode("repeat", &policy.Repeat); err != nil {
		return nil, err
	}
	if err := obj.decode("sequence", &policy.Sequence); err != nil {
		return nil, err
	}
	if err := obj.optional("interval", &policy.Interval); err != nil {
		return nil, err
	}
	if err := obj.optional("active", &policy.Active); err != nil {
		return nil, err
	}
	return build(obj, policy)
}

func build(obj object, policy actions.Policy) (*actions.List, error) {
	acts, err := obj.actions()
	if err != nil {
		return nil, err
	}
	l, err := actions.NewListWithPolicy(policy, acts)
	if err != nil {
		return nil, formatErr("invalid list", err)
	}
	return l, nil
}

// EncodeLists renders lists as a replay file in their current order.
func EncodeLists(lists []*actions.List, format Format) ([]byte, error) {
	records := make([]listRecord, len(lists))
	for i, l := range lists {
		p := l.Policy()
		records[i] = listRecord{
			Name:     p.Name,
			Actions:  wireActions(l.Snapshot()),
			Repeat:   p.Repeat,
			Sequence: p.Sequence,
			Interval: p.Interval,
			Active:   p.Active,
		}
	}
	return encode(records, format)
}

// EncodeList renders l as a single {name, actions} object.
func EncodeList(l *actions.List, format Format) ([]byte, error) {
	return encode(singleRecord{Name: l.Name(), Actions: wireActions(l.Snapshot())}, format)
}

// LoadLists reads a replay file. YAML is detected by extension.
func LoadLists(path string) ([]*actions.List, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	lists, err := DecodeLists(data)
	if err != nil {
		return nil, withPath(err, path)
	}
	return lists, nil
}

// LoadList reads a single exported list.
func LoadList(path string) (*actions.List, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	l, err := DecodeList(data)
	if err != nil {
		return nil, withPath(err, path)
	}
	return l, nil
}

// SaveLists writes a replay file in the format implied by path.
func SaveLists(path string, lists []*actions.List) error {
	data, err := EncodeLists(lists, FormatFromPath(path))
	if err != nil {
		return err
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("saving replay lists: %w", err)
	}
	return nil
}

// SaveList writes a single list in the format implied by path.
func SaveList(path string, l *actions.List) error {
	data, err := EncodeList(l, FormatFromPath(path))
	if err != nil {
		return err
	}
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("saving list: %w", err)
	}
	return nil
}
