package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/scheduler"
	"github.com/watzon/clickloop/internal/store"
)

var (
	fileKind      string
	convertFormat string
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check an action-list or cron-job file",
	Long: `Decode a file and report what it holds.

The kind is detected from the content: entries with a "time" or
"cron_expression" key are cron jobs. Use --kind to force it.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Rewrite a file as JSON or YAML",
	Long: `Decode a file and write it back in the requested format. The format
defaults to the extension of <out>.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	validateCmd.Flags().StringVarP(&fileKind, "kind", "k", "auto", "file kind (auto, lists, cron)")
	convertCmd.Flags().StringVarP(&fileKind, "kind", "k", "auto", "file kind (auto, lists, cron)")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "", "output format (json, yaml)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(convertCmd)
}

// decoded is the content of a lists or cron file.
type decoded struct {
	kind  store.Kind
	lists []*actions.List
	jobs  []*scheduler.CronJob
}

func loadAny(path, kindFlag string) (*decoded, error) {
	kind, err := store.ParseKind(kindFlag)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		if kind, err = store.DetectFileKind(path); err != nil {
			return nil, err
		}
	}

	switch kind {
	case store.KindLists:
		lists, err := store.LoadLists(path)
		if err != nil {
			return nil, err
		}
		return &decoded{kind: kind, lists: lists}, nil
	default:
		jobs, err := store.LoadCronJobs(path)
		if err != nil {
			return nil, err
		}
		return &decoded{kind: kind, jobs: jobs}, nil
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	d, err := loadAny(args[0], fileKind)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch d.kind {
	case store.KindLists:
		total := 0
		for _, l := range d.lists {
			if err := l.Validate(); err != nil {
				return fmt.Errorf("list %q: %w", l.Name(), err)
			}
			total += l.Len()
		}
		fmt.Fprintf(out, "%s: %d lists, %d actions\n", args[0], len(d.lists), total)
	case store.KindCron:
		active := 0
		for _, j := range d.jobs {
			if j.Active {
				active++
			}
		}
		fmt.Fprintf(out, "%s: %d cron jobs, %d active\n", args[0], len(d.jobs), active)
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	format := store.FormatFromPath(out)
	if convertFormat != "" {
		f, err := store.ParseFormat(convertFormat)
		if err != nil {
			return err
		}
		format = f
	}

	d, err := loadAny(in, fileKind)
	if err != nil {
		return err
	}

	var data []byte
	switch d.kind {
	case store.KindLists:
		data, err = store.EncodeLists(d.lists, format)
	case store.KindCron:
		data, err = store.EncodeCronJobs(scheduler.NewTable(d.jobs...).Jobs(), format)
	}
	if err != nil {
		return err
	}

	if err := store.WriteFile(out, data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %s)\n", out, d.kind, format)
	return nil
}
