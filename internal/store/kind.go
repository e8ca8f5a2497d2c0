package store

import "fmt"

// Kind is what a file holds.
type Kind string

const (
	KindLists Kind = "lists"
	KindCron  Kind = "cron"
)

// ParseKind parses a --kind flag value. "auto" and "" yield "".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "auto":
		return "", nil
	case string(KindLists):
		return KindLists, nil
	case string(KindCron):
		return KindCron, nil
	default:
		return "", fmt.Errorf("unknown kind %q (want auto, lists or cron)", s)
	}
}

// DetectKind reports whether data holds cron jobs or action lists. Any
// entry carrying "time" or "cron_expression" makes it a cron-job file.
func DetectKind(data []byte) (Kind, error) {
	objs, _, err := splitDocument(data)
	if err != nil {
		return "", err
	}
	for _, obj := range objs {
		if obj.has("time") || obj.has("cron_expression") {
			return KindCron, nil
		}
	}
	return KindLists, nil
}

// DetectFileKind reads path and calls DetectKind.
func DetectFileKind(path string) (Kind, error) {
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	kind, err := DetectKind(data)
	if err != nil {
		return "", withPath(err, path)
	}
	return kind, nil
}
