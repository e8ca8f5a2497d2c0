package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/clickloop/internal/actions"
	"github.com/watzon/clickloop/internal/store"
)

var (
	playRepeat int
	playList   string
)

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a single list",
	Long: `Play one list, ignoring its replay policy.

The file may hold a single list or several; pick one with --list.
--repeat 0 plays until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().IntVarP(&playRepeat, "repeat", "r", 1, "times to play the list (0 repeats until interrupted)")
	playCmd.Flags().StringVarP(&playList, "list", "l", "", "name of the list to play (default: first)")

	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	lists, err := store.LoadLists(args[0])
	if err != nil {
		return err
	}

	l, err := pickList(lists, playList)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	a.serve(ctx)
	a.engine.SetCurrent(l)

	if err := a.engine.PlayCurrent(ctx, playRepeat); err != nil {
		return err
	}
	a.engine.WaitPlayback()

	log.Info().Str("list", l.Name()).Msg("Playback finished")
	return nil
}

func pickList(lists []*actions.List, name string) (*actions.List, error) {
	if len(lists) == 0 {
		return nil, fmt.Errorf("file holds no lists")
	}
	if name == "" {
		return lists[0], nil
	}
	for _, l := range lists {
		if l.Name() == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("no list named %q", name)
}
