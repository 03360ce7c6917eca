package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

const shellHelp = `commands:
  at <time> [attribute...]             states alive at time
  range <from> <to> [attribute...]     states intersecting [from, to]
  attrs [prefix]                       registered attributes
  stats                                history summary
  exit`

func (c *cli) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Query the history interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withHistory(func(s *session) error {
				return s.repl(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func (s *session) repl(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "htree> ")

		if !scanner.Scan() { // Ctrl+D
			fmt.Fprintln(out)
			break
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if cmd := strings.ToLower(fields[0]); cmd == "exit" || cmd == "quit" {
			break
		}
		if err := s.exec(ctx, out, fields); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (s *session) exec(ctx context.Context, out io.Writer, fields []string) error {
	switch strings.ToLower(fields[0]) {
	case "at":
		if len(fields) < 2 {
			return fmt.Errorf("usage: at <time> [attribute...]")
		}
		t, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return err
		}
		return s.at(ctx, out, t, fields[2:])
	case "range":
		if len(fields) < 3 {
			return fmt.Errorf("usage: range <from> <to> [attribute...]")
		}
		from, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return err
		}
		to, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return err
		}
		return s.between(ctx, out, from, to, fields[3:])
	case "attrs":
		prefix := ""
		if len(fields) > 1 {
			prefix = fields[1]
		}
		return s.attrs(out, prefix)
	case "stats":
		return s.stats(ctx, out)
	case "help":
		fmt.Fprintln(out, shellHelp)
		return nil
	}
	return fmt.Errorf("unknown command %q, try help", fields[0])
}
