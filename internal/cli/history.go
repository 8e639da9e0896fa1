package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stockroom/internal/engine"
	"github.com/roach88/stockroom/internal/history"
	"github.com/roach88/stockroom/internal/ir"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Code    string
	Subtype string
}

// HistoryReport is the history command's output.
type HistoryReport struct {
	Key     string          `json:"key"`
	Exists  bool            `json:"exists"`
	Entries []history.Entry `json:"entries"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the change history of one item",
		Long: `Replay the log and print every change that touched an item, oldest
first. History is kept for items that have since been removed.

Example:
  stockroom history --code 4901234567890 --subtype blue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Code, "code", "", "product code (required)")
	cmd.Flags().StringVar(&opts.Subtype, "subtype", "", "subtype")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	p := history.New()
	res, err := engine.ReplayWithHistory(ctx, rt.log, p)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	key := ir.NewItemKey(opts.Code, opts.Subtype)
	_, exists := res.State.Item(key)
	report := HistoryReport{Key: key.String(), Exists: exists, Entries: p.Entries(key)}
	if report.Entries == nil {
		report.Entries = []history.Entry{}
	}

	return opts.formatter(cmd).Emit(report, func(w io.Writer) {
		if len(report.Entries) == 0 {
			fmt.Fprintf(w, "No history for %s.\n", report.Key)
			return
		}
		fmt.Fprintf(w, "History of %s", report.Key)
		if !report.Exists {
			fmt.Fprint(w, " (removed)")
		}
		fmt.Fprintln(w)
		for _, e := range report.Entries {
			actor := e.Actor
			if actor == "" {
				actor = "-"
			}
			fmt.Fprintf(w, "  %5d  %s  %-10s %s\n", e.Seq, e.At.UTC().Format(time.DateTime), actor, e.Text)
		}
	})
}
