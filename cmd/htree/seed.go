package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"StateHistory/interval"
)

var threadStates = []string{"RUN", "WAIT", "IDLE", "SYSCALL"}

type seedOptions struct {
	quarks      int
	horizon     int64
	maxDuration int64
	seed        uint64
}

func (c *cli) seedCmd() *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the history with a generated thread state trace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSeed(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.quarks, "quarks", 16, "number of threads")
	cmd.Flags().Int64Var(&opts.horizon, "horizon", 100_000, "end of the trace")
	cmd.Flags().Int64Var(&opts.maxDuration, "max-duration", 500, "longest state")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "random seed")
	return cmd
}

// seedStates generates back to back states per thread in end time order.
func seedStates(opts seedOptions, start int64, quarks []int32) []interval.Interval {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	var out []interval.Interval
	for _, q := range quarks {
		for cur := start; cur < opts.horizon; {
			end := min(cur+rng.Int64N(opts.maxDuration), opts.horizon)
			v := interval.StringValue(threadStates[rng.IntN(len(threadStates))])
			if rng.IntN(8) == 0 {
				v = interval.IntValue(rng.Int32N(64))
			}
			out = append(out, interval.Interval{Start: cur, End: end, Attribute: q, Value: v})
			cur = end + 1
		}
	}
	slices.SortFunc(out, interval.Compare)
	return out
}

func (c *cli) runSeed(cmd *cobra.Command, opts seedOptions) error {
	if opts.quarks <= 0 || opts.maxDuration <= 0 {
		return errors.New("--quarks and --max-duration must be positive")
	}
	if !c.cfg.Backend.InMemory {
		if err := os.Remove(c.cfg.Backend.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove old history: %w", err)
		}
	}

	reg, err := c.openRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	paths := make([]string, opts.quarks)
	for i := range paths {
		paths[i] = fmt.Sprintf("Threads/%d/Status", i)
	}
	quarks, err := reg.Quarks(paths...)
	if err != nil {
		return err
	}

	b, err := c.openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	states := seedStates(opts, b.StartTime(), quarks)
	for _, iv := range states {
		if err := b.InsertPastState(iv.Start, iv.End, iv.Attribute, iv.Value); err != nil {
			return err
		}
	}
	if err := b.FinishedBuilding(opts.horizon); err != nil {
		return err
	}

	size, err := b.FileSize()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %s intervals over %d attributes into %s (%s)\n",
		humanize.Comma(int64(len(states))), len(quarks), c.cfg.Backend.Path, humanize.IBytes(uint64(size)))
	return nil
}
