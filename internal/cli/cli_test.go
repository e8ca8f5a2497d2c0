package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/store"
)

func testLists(t *testing.T, dir string) string {
	t.Helper()

	farm := actions.NewList("farm wheat")
	farm.Append(actions.Click(10, 20, 0))
	farm.Append(actions.Key("enter", 100*time.Millisecond))

	fish := actions.NewList("fish")
	fish.Append(actions.Key("hello", 0))

	path := filepath.Join(dir, "lists.json")
	if err := store.SaveLists(path, []*actions.List{farm, fish}); err != nil {
		t.Fatalf("SaveLists: %v", err)
	}
	return path
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, verbose, statusAddr = "", false, ""
	fileKind, convertFormat = "auto", ""
	cronAddName, cronAddList = "", ""

	if !slices.Contains(args, "--db") {
		args = append(args, "--db", filepath.Join(t.TempDir(), "test.db"))
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestFilterLists(t *testing.T) {
	lists := []*actions.List{actions.NewList("farm wheat"), actions.NewList("farm corn"), actions.NewList("fish")}

	got, err := filterLists(lists, "farm*")
	if err != nil {
		t.Fatalf("filterLists: %v", err)
	}
	if len(got) != 2 || got[0].Name() != "farm wheat" || got[1].Name() != "farm corn" {
		t.Errorf("unexpected lists %v", got)
	}

	if _, err := filterLists(lists, "mine*"); err == nil {
		t.Error("expected an error when nothing matches")
	}
	if _, err := filterLists(lists, "[bad"); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}

func TestPickList(t *testing.T) {
	lists := []*actions.List{actions.NewList("a"), actions.NewList("b")}

	if l, err := pickList(lists, ""); err != nil || l.Name() != "a" {
		t.Errorf("default pick: got %v, %v", l, err)
	}
	if l, err := pickList(lists, "b"); err != nil || l.Name() != "b" {
		t.Errorf("named pick: got %v, %v", l, err)
	}
	if _, err := pickList(lists, "c"); err == nil {
		t.Error("expected an error for a missing list")
	}
	if _, err := pickList(nil, ""); err == nil {
		t.Error("expected an error for an empty file")
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := testLists(t, dir)

	out, err := execute(t, "validate", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "2 lists, 3 actions") {
		t.Errorf("unexpected output %q", out)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"name": "x"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "validate", bad); !store.IsFormatError(err) {
		t.Errorf("expected a format error, got %v", err)
	}
}

func TestCronAddListAndConvert(t *testing.T) {
	dir := t.TempDir()
	lists := testLists(t, dir)
	jobs := filepath.Join(dir, "jobs.json")

	if _, err := execute(t, "cron", "add", lists, "--time", "09:30 PM", "--jobs", jobs, "--list", "fish"); err != nil {
		t.Fatalf("cron add: %v", err)
	}
	out, err := execute(t, "cron", "add", lists, "--time", "07:05 am", "--jobs", jobs, "--name", "morning")
	if err != nil {
		t.Fatalf("second cron add: %v", err)
	}
	if !strings.Contains(out, "2 jobs") {
		t.Errorf("unexpected output %q", out)
	}

	loaded, err := store.LoadCronJobs(jobs)
	if err != nil {
		t.Fatalf("LoadCronJobs: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(loaded))
	}

	out, err = execute(t, "cron", "list", jobs)
	if err != nil {
		t.Fatalf("cron list: %v", err)
	}
	morning := strings.Index(out, "morning")
	fish := strings.Index(out, "fish")
	if morning < 0 || fish < 0 || morning > fish {
		t.Errorf("expected jobs sorted by time of day:\n%s", out)
	}
	if !strings.Contains(out, "5 7 * * *") || !strings.Contains(out, "30 21 * * *") {
		t.Errorf("expected cron expressions in output:\n%s", out)
	}

	if _, err := execute(t, "validate", jobs); err != nil {
		t.Fatalf("validate jobs: %v", err)
	}

	yamlPath := filepath.Join(dir, "jobs.yaml")
	if _, err := execute(t, "convert", jobs, yamlPath); err != nil {
		t.Fatalf("convert: %v", err)
	}
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "cron_expression: 5 7 * * *") {
		t.Errorf("expected YAML output, got:\n%s", data)
	}

	back, err := store.LoadCronJobs(yamlPath)
	if err != nil {
		t.Fatalf("LoadCronJobs yaml: %v", err)
	}
	if len(back) != 2 {
		t.Errorf("expected 2 jobs after conversion, got %d", len(back))
	}
}

func TestCronAddRejectsBadTime(t *testing.T) {
	dir := t.TempDir()
	lists := testLists(t, dir)
	jobs := filepath.Join(dir, "jobs.json")

	if _, err := execute(t, "cron", "add", lists, "--time", "25:00 PM", "--jobs", jobs); err == nil {
		t.Fatal("expected a validation error")
	}
	if _, err := os.Stat(jobs); !os.IsNotExist(err) {
		t.Error("jobs file should not be created on error")
	}
}

func TestPlayAndHistory(t *testing.T) {
	dir := t.TempDir()
	lists := testLists(t, dir)
	db := filepath.Join(dir, "history.db")

	if _, err := execute(t, "play", lists, "--list", "fish", "--repeat", "2", "--db", db); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, err := execute(t, "replay", lists, "--only", "farm*", "--db", db); err != nil {
		t.Fatalf("replay: %v", err)
	}

	out, err := execute(t, "history", "--db", db)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "fish") || !strings.Contains(out, "replay") {
		t.Errorf("expected both runs in history:\n%s", out)
	}

	out, err = execute(t, "history", "--source", "play", "--db", db)
	if err != nil {
		t.Fatalf("history --source: %v", err)
	}
	if strings.Contains(out, "replay") {
		t.Errorf("expected only playback runs:\n%s", out)
	}
}

func TestFileWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	if err := os.WriteFile(path, []byte("[]"), 0o600); err != nil {
		t.Fatal(err)
	}

	calls := make(chan FileEvent, 10)
	w, err := NewFileWatcher(path, 50*time.Millisecond, func(ev FileEvent) { calls <- ev })
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}
	w.Start(t.Context())
	defer w.Stop()

	other := filepath.Join(dir, "other.json")
	if err := os.WriteFile(other, []byte("[]"), 0o600); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("[ ]"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case ev := <-calls:
		if filepath.Base(ev.Path) != "jobs.json" {
			t.Errorf("unexpected path %s", ev.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case ev := <-calls:
		t.Errorf("expected writes to collapse into one call, got extra %v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
