package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) queryCmd() *cobra.Command {
	var (
		at       int64
		from, to int64
		attrs    []string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print the states alive at --at, or intersecting [--from, --to]",
		Example: `  htree query --at 5000
  htree query --from 100 --to 200 --attr Threads/3/Status
  htree query --at 5000 --attr Threads/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(func(s *session) error {
				ctx, out := cmd.Context(), cmd.OutOrStdout()
				if cmd.Flags().Changed("at") {
					return s.at(ctx, out, at, attrs)
				}
				lo, hi := s.b.StartTime(), s.b.EndTime()
				if cmd.Flags().Changed("from") {
					lo = from
				}
				if cmd.Flags().Changed("to") {
					hi = to
				}
				return s.between(ctx, out, lo, hi, attrs)
			})
		},
	}
	cmd.Flags().Int64Var(&at, "at", 0, "point query time")
	cmd.Flags().Int64Var(&from, "from", 0, "range start, defaults to the history start")
	cmd.Flags().Int64Var(&to, "to", 0, "range end, defaults to the history end")
	cmd.Flags().StringSliceVarP(&attrs, "attr", "a", nil, "attribute paths, a trailing / selects a subtree")
	cmd.MarkFlagsMutuallyExclusive("at", "from")
	cmd.MarkFlagsMutuallyExclusive("at", "to")
	return cmd
}
