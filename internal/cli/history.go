package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/clickloop/internal/database"
	"github.com/watzon/clickloop/internal/history"
)

var (
	historySource string
	historyStatus string
	historySince  time.Duration
	historyLimit  int
	historyPrune  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	Long: `List replays, manual playbacks and cron fires recorded in the history
database, newest first.

Examples:
  clickloop history --source cron --since 24h
  clickloop history --prune`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historySource, "source", "", "filter by source (replay, play, cron)")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (running, completed, stopped, failed, skipped)")
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only runs started within this duration")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to show")
	historyCmd.Flags().BoolVar(&historyPrune, "prune", false, "delete runs older than the retention period and exit")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store := history.NewStore(db)
	ctx := cmd.Context()

	if historyPrune {
		days := cfg.Database.HistoryRetentionDays
		if days <= 0 {
			return fmt.Errorf("history retention is disabled (database.history_retention_days = %d)", days)
		}
		n, err := store.DeleteOlderThan(ctx, time.Duration(days)*24*time.Hour)
		if err != nil {
			return err
		}
		log.Info().Int64("deleted", n).Int("retention_days", days).Msg("History pruned")
		return nil
	}

	f := history.Filter{
		Source: history.Source(historySource),
		Status: history.Status(historyStatus),
		Limit:  historyLimit,
	}
	if historySince > 0 {
		f.Since = time.Now().Add(-historySince)
	}

	runs, err := store.List(ctx, f)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSOURCE\tNAME\tSTATUS\tACTIONS\tCYCLES\tDURATION\tERROR")
	for _, run := range runs {
		name := run.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			humanize.Time(run.StartedAt),
			run.Source,
			name,
			run.Status,
			run.Actions,
			run.FullCycles,
			time.Duration(run.DurationMs)*time.Millisecond,
			run.Error,
		)
	}
	return w.Flush()
}
