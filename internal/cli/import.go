package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stockroom/internal/engine"
	"github.com/roach88/stockroom/internal/importer"
	"github.com/roach88/stockroom/internal/ir"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Resolutions string
	Commit      bool
}

// ImportRowView is one analyzed row.
type ImportRowView struct {
	Line       int      `json:"line"`
	Code       string   `json:"code"`
	Qty        int      `json:"qty"`
	Status     string   `json:"status"`
	Conflict   string   `json:"conflict,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// CommitView summarizes what a commit dispatched.
type CommitView struct {
	Rows   int     `json:"rows"`
	Chunks int     `json:"chunks"`
	Seqs   []int64 `json:"seqs"`
}

// ImportReport is the import command's output.
type ImportReport struct {
	File      string          `json:"file"`
	Rows      []ImportRowView `json:"rows"`
	Summary   map[string]int  `json:"summary"`
	Rejected  []string        `json:"rejected,omitempty"`
	Committed *CommitView     `json:"committed,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Reconcile a supplier CSV against inventory",
		Long: `Analyze a CSV of incoming stock against the current inventory.
Each row is NEW (unknown code), MATCH (one existing item), or CONFLICT
(several subtypes share the code, or the classification disagrees).

Conflicts are resolved with a YAML file keyed by source line:

  resolutions:
    - line: 2
      split: [{subtype: A, qty: 6}, {subtype: B, qty: 4}]
    - line: 5
      choice: incoming   # or existing

With --commit, every NEW, MATCH, and resolved row is appended as chunked
bulk_import_items actions; unresolved conflicts are left out.

Exit codes:
  0 - Analysis (and commit, if requested) succeeded
  1 - A resolution was rejected or the commit failed part way
  2 - Command error (unreadable file, transport unavailable, etc.)

Examples:
  stockroom import arrivals.csv
  stockroom import arrivals.csv --resolutions res.yaml --commit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Resolutions, "resolutions", "r", "", "YAML file of conflict resolutions")
	cmd.Flags().BoolVar(&opts.Commit, "commit", false, "append the import to the log")
	cmd.Flags().Int("chunk-size", 0, "maximum entries per bulk action (default from config)")

	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions, cmd *cobra.Command, path string) error {
	out := opts.formatter(cmd)

	rows, err := readImportFile(path)
	if err != nil {
		var pe *importer.ParseError
		if errors.As(err, &pe) {
			_ = out.Error(CodeParse, pe.Error(), map[string]any{"line": pe.Line, "column": pe.Column})
		}
		return WrapExitError(ExitCommandError, "failed to read import file", err)
	}

	var resolutions *importer.ResolutionFile
	if opts.Resolutions != "" {
		f, err := os.Open(opts.Resolutions)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open resolutions", err)
		}
		resolutions, err = importer.ReadResolutions(f)
		f.Close()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read resolutions", err)
		}
	}

	rt, err := openRuntime(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	session := importer.NewSession(rows,
		importer.WithChunkSize(rt.cfg.Import.ChunkSize),
		importer.WithMaxBytes(rt.cfg.Import.MaxBytes),
	)

	var (
		le   *liveEngine
		snap *ir.State
	)
	if opts.Commit {
		le, err = rt.startEngine(ctx)
		if err != nil {
			return err
		}
		defer le.stop()
		snap = le.Snapshot()
	} else {
		res, err := engine.Replay(ctx, rt.log)
		if err != nil {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}
		snap = res.State
	}

	session.Recompute(snap)

	report := ImportReport{File: path}
	if resolutions != nil {
		for _, err := range session.ApplyResolutions(resolutions) {
			report.Rejected = append(report.Rejected, err.Error())
		}
	}

	if len(report.Rejected) > 0 {
		fillImportReport(&report, session)
		return out.Fail(ExitFailure, CodeValidation, fmt.Sprintf("%d resolution(s) rejected", len(report.Rejected)), report,
			func(w io.Writer) { writeImportText(w, report) })
	}

	if opts.Commit {
		res, commitErr := session.Commit(ctx, le, le.Snapshot())
		cv := &CommitView{Rows: res.Rows, Chunks: res.Chunks, Seqs: []int64{}}
		for _, r := range res.Receipts {
			cv.Seqs = append(cv.Seqs, r.Seq)
		}
		report.Committed = cv

		if n := len(res.Receipts); n > 0 {
			if err := le.wait(ctx, res.Receipts[n-1].Seq); err != nil && commitErr == nil {
				commitErr = err
			}
		}
		rt.logger.Info().Int("rows", res.Rows).Int("chunks", res.Chunks).Msg("import committed")

		if commitErr != nil {
			fillImportReport(&report, session)
			return out.Fail(ExitFailure, CodeCommit, commitErr.Error(), report,
				func(w io.Writer) { writeImportText(w, report) })
		}
	}

	fillImportReport(&report, session)
	return out.Emit(report, func(w io.Writer) { writeImportText(w, report) })
}

func readImportFile(path string) ([]importer.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importer.ReadCSV(f)
}

func fillImportReport(r *ImportReport, s *importer.Session) {
	items := s.Items()
	r.Rows = make([]ImportRowView, 0, len(items))
	r.Summary = make(map[string]int)
	for st, n := range s.Summary() {
		r.Summary[string(st)] = n
	}

	for _, it := range items {
		v := ImportRowView{
			Line:     it.Row.Line,
			Code:     it.Row.Code,
			Qty:      it.Row.Qty,
			Status:   string(it.Status),
			Conflict: string(it.Conflict),
		}
		if it.Status == importer.StatusConflict {
			for _, c := range it.Candidates {
				v.Candidates = append(v.Candidates, fmt.Sprintf("%s (qty %d, class %q)", c.Key(), c.Qty, c.Classification))
			}
		}
		r.Rows = append(r.Rows, v)
	}
}

func writeImportText(w io.Writer, r ImportReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tCODE\tQTY\tSTATUS\tDETAIL")
	for _, row := range r.Rows {
		detail := row.Conflict
		if len(row.Candidates) > 0 {
			detail += ": " + strings.Join(row.Candidates, ", ")
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", row.Line, row.Code, row.Qty, row.Status, detail)
	}
	tw.Flush()
	fmt.Fprintln(w)

	var parts []string
	for _, st := range []importer.Status{importer.StatusNew, importer.StatusMatch, importer.StatusConflict, importer.StatusResolved, importer.StatusDone} {
		if n := r.Summary[string(st)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", st, n))
		}
	}
	fmt.Fprintf(w, "%d row(s): %s\n", len(r.Rows), strings.Join(parts, ", "))

	for _, msg := range r.Rejected {
		fmt.Fprintf(w, "✗ %s\n", msg)
	}
	if c := r.Committed; c != nil {
		fmt.Fprintf(w, "Committed %d row(s) in %d action(s)\n", c.Rows, c.Chunks)
	}
	if n := r.Summary[string(importer.StatusConflict)]; n > 0 {
		fmt.Fprintf(w, "%d conflict(s) unresolved\n", n)
	}
}
