package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/clickloop/internal/scheduler"
	"github.com/watzon/clickloop/internal/store"
)

var (
	cronNoWatch   bool
	cronDryRun    bool
	cronWriteBack bool

	cronAddTime string
	cronAddJobs string
	cronAddName string
	cronAddList string
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Time-of-day jobs",
	Long: `Manage and run cron jobs. A job binds a snapshot of a list to a 12-hour
time of day ("09:00 AM") and fires at most once per matching minute.

Examples:
  clickloop cron add lists.json --time "09:00 AM" --jobs jobs.json
  clickloop cron list jobs.json
  clickloop cron run jobs.json`,
}

var cronRunCmd = &cobra.Command{
	Use:   "run <jobs-file>",
	Short: "Run the scheduler until interrupted",
	Long: `Run the cron scheduler over the jobs in the file.

The file is watched and reloaded on change; a malformed edit is logged and
the previous jobs stay in effect. Fires are recorded in the history database
so that a restart never fires the same minute twice.`,
	Args: cobra.ExactArgs(1),
	RunE: runCronRun,
}

var cronAddCmd = &cobra.Command{
	Use:   "add <list-file>",
	Short: "Bind a list to a time of day",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronAdd,
}

var cronListCmd = &cobra.Command{
	Use:   "list <jobs-file>",
	Short: "Show jobs sorted by time of day",
	Args:  cobra.ExactArgs(1),
	RunE:  runCronList,
}

func init() {
	cronRunCmd.Flags().BoolVar(&cronNoWatch, "no-watch", false, "do not reload the jobs file on change")
	cronRunCmd.Flags().BoolVar(&cronDryRun, "dry-run", false, "log due jobs without playing them")
	cronRunCmd.Flags().BoolVar(&cronWriteBack, "write-back", false, "save last executed times to the jobs file on exit")

	cronAddCmd.Flags().StringVarP(&cronAddTime, "time", "t", "", `time of day, e.g. "09:00 AM"`)
	cronAddCmd.Flags().StringVarP(&cronAddJobs, "jobs", "j", "", "jobs file to add to (created if missing)")
	cronAddCmd.Flags().StringVarP(&cronAddName, "name", "n", "", "job name (default: list name)")
	cronAddCmd.Flags().StringVarP(&cronAddList, "list", "l", "", "list to bind (default: first)")
	_ = cronAddCmd.MarkFlagRequired("time")
	_ = cronAddCmd.MarkFlagRequired("jobs")

	cronCmd.AddCommand(cronRunCmd)
	cronCmd.AddCommand(cronAddCmd)
	cronCmd.AddCommand(cronListCmd)
	rootCmd.AddCommand(cronCmd)
}

func runCronRun(cmd *cobra.Command, args []string) error {
	path := args[0]

	if cronDryRun {
		cfg.Cron.Execute = false
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.ImportCron(path); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a.serve(ctx)

	var watcher *FileWatcher
	if !cronNoWatch {
		watcher, err = NewFileWatcher(path, watchDebounce, func(ev FileEvent) {
			if ev.Type == EventDeleted {
				log.Warn().Str("path", ev.Path).Msg("Jobs file removed, keeping current jobs")
				return
			}
			if err := a.engine.ImportCron(path); err != nil {
				log.Error().Err(err).Str("path", path).Msg("Reloading jobs failed, keeping current jobs")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to watch jobs file, continuing without reload")
		} else {
			watcher.Start(ctx)
			log.Info().Str("path", path).Msg("Watching jobs file")
		}
	}

	a.engine.Start(ctx)
	log.Info().
		Int("jobs", a.engine.Jobs().Len()).
		Bool("execute", cfg.Cron.Execute).
		Str("on_busy", cfg.Cron.OnBusy).
		Msg("Cron scheduler running")

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	if watcher != nil {
		_ = watcher.Stop()
	}
	a.engine.Cron().Stop()

	if cronWriteBack {
		if err := a.engine.ExportCron(path); err != nil {
			return fmt.Errorf("saving jobs: %w", err)
		}
		log.Info().Str("path", path).Msg("Jobs saved")
	}
	return nil
}

func runCronAdd(cmd *cobra.Command, args []string) error {
	lists, err := store.LoadLists(args[0])
	if err != nil {
		return err
	}
	l, err := pickList(lists, cronAddList)
	if err != nil {
		return err
	}

	name := cronAddName
	if name == "" {
		name = l.Name()
	}
	job, err := scheduler.NewJob(name, l, cronAddTime)
	if err != nil {
		return err
	}

	var jobs []*scheduler.CronJob
	if _, err := os.Stat(cronAddJobs); err == nil {
		if jobs, err = store.LoadCronJobs(cronAddJobs); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	table := scheduler.NewTable(jobs...)
	table.Add(job)
	if err := store.SaveCronJobs(cronAddJobs, table.Jobs()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added %q at %s (%s), %d jobs in %s\n",
		job.Name, job.Time, job.Expression(), table.Len(), cronAddJobs)
	return nil
}

func runCronList(cmd *cobra.Command, args []string) error {
	jobs, err := store.LoadCronJobs(args[0])
	if err != nil {
		return err
	}

	table := scheduler.NewTable(jobs...)
	parser := scheduler.NewCronParser()
	now := time.Now()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tTIME\tEXPRESSION\tACTIVE\tACTIONS\tLAST EXECUTED\tNEXT RUN")
	for i, job := range table.Jobs() {
		next := "-"
		if job.Active {
			if at, err := parser.NextRun(job.Expression(), now); err == nil {
				next = humanize.Time(at)
			}
		}
		last := job.LastExecutedString()
		if !job.LastExecuted.IsZero() {
			last += " (" + humanize.Time(job.LastExecuted) + ")"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\t%d\t%s\t%s\n",
			i, job.Name, job.Time, job.Expression(), job.Active, len(job.Actions), last, next)
	}
	return w.Flush()
}
