package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stockroom/internal/ir"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Timeout time.Duration
}

// DispatchReport is the dispatch command's output.
type DispatchReport struct {
	ID          string           `json:"id"`
	Seq         int64            `json:"seq"`
	Kind        string           `json:"kind"`
	Diagnostics []DiagnosticView `json:"diagnostics"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch KIND [JSON]",
		Short: "Append one action to the log",
		Long: `Validate an action payload, append it to the log, and wait until it
has been applied. Diagnostics raised while applying it are reported.
The payload is read from stdin when JSON is omitted or "-".

Kinds: update_item, update_field, package_item, quantify_item, retype_item,
new_order, bulk_import_items, add_name, remove_name

Examples:
  stockroom dispatch add_name '{"id":"4202","name":"bags"}'
  stockroom dispatch package_item '{"order_id":"O-1","key":{"code":"X","subtype":""},"qty":2}'`,
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatch(cmd.Context(), opts, cmd, args)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long to wait for the action to be applied")

	return cmd
}

// kindNames lists the action kinds for shell completion.
func kindNames() []string {
	names := make([]string, len(ir.Kinds))
	for i, k := range ir.Kinds {
		names[i] = string(k)
	}
	return names
}

func runDispatch(ctx context.Context, opts *DispatchOptions, cmd *cobra.Command, args []string) error {
	var payload []byte
	if len(args) == 2 && args[1] != "-" {
		payload = []byte(args[1])
	} else {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read payload", err)
		}
		payload = b
	}

	action, err := ir.DecodeAction(ir.Kind(args[0]), payload)
	if err != nil {
		var de *ir.DecodeError
		if errors.As(err, &de) {
			return WrapExitError(ExitCommandError, "invalid action", de)
		}
		return WrapExitError(ExitCommandError, "invalid action", err)
	}

	rt, err := openRuntime(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	le, err := rt.startEngine(ctx)
	if err != nil {
		return err
	}
	defer le.stop()
	le.drainDiagnostics()

	r, err := le.Dispatch(ctx, action)
	if err != nil {
		return WrapExitError(ExitFailure, "dispatch failed", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := le.wait(waitCtx, r.Seq); err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("action %s appended at seq %d but not applied", r.ID, r.Seq), err)
	}

	var own []DiagnosticView
	for _, d := range diagnosticViews(le.drainDiagnostics()) {
		if d.Seq == r.Seq {
			own = append(own, d)
		}
	}
	if own == nil {
		own = []DiagnosticView{}
	}

	report := DispatchReport{ID: r.ID, Seq: r.Seq, Kind: string(r.Kind), Diagnostics: own}
	return opts.formatter(cmd).Emit(report, func(w io.Writer) {
		fmt.Fprintf(w, "%s committed at seq %d (id %s)\n", report.Kind, report.Seq, report.ID)
		for _, d := range report.Diagnostics {
			fmt.Fprintf(w, "  %s: %s\n", d.Code, d.Message)
		}
	})
}
