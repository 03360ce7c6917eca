package main

import (
	"github.com/spf13/cobra"

	"StateHistory/historytree"
)

func (c *cli) inspectCmd() *cobra.Command {
	var intervals bool
	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Dump the header and every node of a history file, then verify it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.Backend.Path
			if len(args) == 1 {
				path = args[0]
			}
			return historytree.InspectFileTo(cmd.OutOrStdout(), path, intervals)
		},
	}
	cmd.Flags().BoolVar(&intervals, "intervals", false, "list the intervals of every node")
	return cmd
}
