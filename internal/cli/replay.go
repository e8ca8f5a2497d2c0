package cli

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/store"
)

var (
	replayRepeatAll bool
	replayOnly      string
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay the lists in a file in full cycles",
	Long: `Replay every active list in the file, in ascending sequence order.

Each list runs its repeat count (0 repeats until stopped) unless its interval
has not yet elapsed since it last ran. With --repeat-all full cycles repeat
until interrupted.

Examples:
  clickloop replay lists.json
  clickloop replay lists.json --repeat-all --only 'farm*'`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayRepeatAll, "repeat-all", false, "repeat full cycles until interrupted")
	replayCmd.Flags().StringVar(&replayOnly, "only", "", "replay only lists whose name matches this glob")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	lists, err := store.LoadLists(args[0])
	if err != nil {
		return err
	}

	if replayOnly != "" {
		lists, err = filterLists(lists, replayOnly)
		if err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("repeat-all") {
		cfg.Replay.RepeatAll = replayRepeatAll
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	a.serve(ctx)
	a.engine.Lists().Replace(lists)

	if err := a.engine.StartReplay(ctx); err != nil {
		return err
	}
	a.engine.Replay().Wait()

	stats := a.engine.Replay().Stats()
	log.Info().
		Int("full_cycles", stats.FullCycles).
		Msg("Replay finished")

	return ignoreCanceled(a.engine.Replay().Err())
}

// filterLists keeps the lists whose name matches pattern.
func filterLists(lists []*actions.List, pattern string) ([]*actions.List, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid --only pattern %q: %w", pattern, err)
	}

	var out []*actions.List
	for _, l := range lists {
		if g.Match(l.Name()) {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no list matches %q", pattern)
	}
	return out, nil
}
