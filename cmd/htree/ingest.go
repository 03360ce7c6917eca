package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"StateHistory/interval"
	"StateHistory/types"
)

func (c *cli) ingestCmd() *cobra.Command {
	var end int64
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Build a history from a state file, one \"start end attribute value\" per line",
		Long: `Reads states from file, or stdin when file is "-" or missing. Each line
holds start, end, attribute path and value, separated by spaces. Values take
the form int:3, long:7, double:0.5, string:RUN or null. Lines starting with #
are ignored. The history is finished at --end, or at the latest end read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return c.runIngest(cmd, in, end)
		},
	}
	cmd.Flags().Int64Var(&end, "end", -1, "end time of the history")
	return cmd
}

// maxLineSize fits the longest string value plus the other fields.
const maxLineSize = interval.MaxStringLen + 4096

// cutField splits the first whitespace separated field off s.
func cutField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// parseState reads one "start end path value" line. The value is the rest
// of the line and keeps its inner spacing.
func parseState(line string) (start, end int64, path string, value interval.Value, err error) {
	var fields [3]string
	rest := line
	for i := range fields {
		fields[i], rest = cutField(rest)
	}
	if fields[2] == "" {
		return 0, 0, "", interval.Value{}, fmt.Errorf("%w: want start end attribute [value]", types.ErrConfig)
	}
	if start, err = strconv.ParseInt(fields[0], 10, 64); err != nil {
		return 0, 0, "", interval.Value{}, fmt.Errorf("start: %w", err)
	}
	if end, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
		return 0, 0, "", interval.Value{}, fmt.Errorf("end: %w", err)
	}
	raw := strings.TrimRight(strings.TrimLeft(rest, " \t"), "\r")
	if value, err = interval.ParseValue(raw); err != nil {
		return 0, 0, "", interval.Value{}, err
	}
	return start, end, fields[2], value, nil
}

func (c *cli) runIngest(cmd *cobra.Command, in io.Reader, end int64) error {
	reg, err := c.openRegistry()
	if err != nil {
		return err
	}
	defer reg.Close()

	b, err := c.openBackend()
	if err != nil {
		return err
	}
	defer b.Close()
	if !b.Building() {
		return fmt.Errorf("%w: history %s is already finished", types.ErrClosedTree, c.cfg.Backend.Path)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo, count := 0, 0
	latest := b.StartTime()
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		start, stop, path, value, err := parseState(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		quark, err := reg.Quark(path)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := b.InsertPastState(start, stop, quark, value); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		latest = max(latest, stop)
		count++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read states: %w", err)
	}

	if end < 0 {
		end = latest
	}
	if err := b.FinishedBuilding(end); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ingested %s intervals, history ends at %d\n", humanize.Comma(int64(count)), b.EndTime())
	return nil
}
