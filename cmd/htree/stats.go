package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the history file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(func(s *session) error {
				return s.stats(cmd.Context(), cmd.OutOrStdout())
			})
		},
	}
}
