package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stockroom/internal/engine"
	"github.com/roach88/stockroom/internal/ir"
)

// InventoryOptions holds flags for the inventory command.
type InventoryOptions struct {
	*RootOptions
	Code string
}

// ItemView is one inventory row.
type ItemView struct {
	Key            string   `json:"key"`
	Code           string   `json:"code"`
	Subtype        string   `json:"subtype"`
	Description    string   `json:"description"`
	Classification string   `json:"classification"`
	Names          []string `json:"names,omitempty"`
	Qty            int      `json:"qty"`
	Pieces         int      `json:"pieces"`
	Shipped        int      `json:"shipped"`
}

// InventoryReport is the inventory command's output.
type InventoryReport struct {
	Seq   int64      `json:"seq"`
	Items []ItemView `json:"items"`
}

// NewInventoryCommand creates the inventory command.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InventoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List items in the replayed state",
		Long: `Replay the log and list every item ordered by code, then subtype.

Examples:
  stockroom inventory
  stockroom inventory --code 4901234567890 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventory(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Code, "code", "", "only items with this product code")

	return cmd
}

func runInventory(ctx context.Context, opts *InventoryOptions, cmd *cobra.Command) error {
	rt, err := openRuntime(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := engine.Replay(ctx, rt.log)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	var items []ir.Item
	if opts.Code != "" {
		items = res.State.ItemsByCode(opts.Code)
	} else {
		for _, k := range res.State.SortedKeys() {
			items = append(items, res.State.Items[k])
		}
	}

	report := InventoryReport{Seq: res.Head, Items: make([]ItemView, 0, len(items))}
	for _, it := range items {
		report.Items = append(report.Items, ItemView{
			Key:            it.Key().String(),
			Code:           it.Code,
			Subtype:        it.Subtype,
			Description:    it.Description,
			Classification: it.Classification,
			Names:          slices.Clone(res.State.Names[it.Classification]),
			Qty:            it.Qty,
			Pieces:         it.Pieces,
			Shipped:        it.Shipped,
		})
	}

	return opts.formatter(cmd).Emit(report, func(w io.Writer) {
		if len(report.Items) == 0 {
			fmt.Fprintln(w, "No items.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tQTY\tSHIPPED\tCLASS\tDESCRIPTION")
		for _, it := range report.Items {
			class := it.Classification
			if len(it.Names) > 0 {
				class += " (" + strings.Join(it.Names, ", ") + ")"
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", it.Key, it.Qty, it.Shipped, class, it.Description)
		}
		tw.Flush()
		fmt.Fprintf(w, "\n%d item(s) at seq %d\n", len(report.Items), report.Seq)
	})
}

// OrderView is one order with its lines.
type OrderView struct {
	ID      string        `json:"id"`
	Date    time.Time     `json:"date"`
	Email   string        `json:"email,omitempty"`
	Product string        `json:"product,omitempty"`
	Lines   []ir.LineItem `json:"lines"`
	Units   int           `json:"units"`
}

// NewOrdersCommand creates the orders command.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orders [ORDER_ID]",
		Short: "List orders and their line items",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrders(cmd.Context(), rootOpts, cmd, args)
		},
	}
}

func runOrders(ctx context.Context, opts *RootOptions, cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := engine.Replay(ctx, rt.log)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	ids := make([]string, 0, len(res.State.Orders))
	for id := range res.State.Orders {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if len(args) == 1 {
		if _, ok := res.State.Order(args[0]); !ok {
			return NewExitError(ExitFailure, fmt.Sprintf("order %s not found", args[0]))
		}
		ids = args
	}

	orders := make([]OrderView, 0, len(ids))
	for _, id := range ids {
		o := res.State.Orders[id]
		v := OrderView{ID: o.ID, Date: o.Date, Email: o.Email, Product: o.Product, Lines: slices.Clone(o.Lines)}
		if v.Lines == nil {
			v.Lines = []ir.LineItem{}
		}
		for _, l := range o.Lines {
			v.Units += l.Qty
		}
		orders = append(orders, v)
	}

	return opts.formatter(cmd).Emit(orders, func(w io.Writer) {
		if len(orders) == 0 {
			fmt.Fprintln(w, "No orders.")
			return
		}
		for _, o := range orders {
			fmt.Fprintf(w, "%s  %s  %d unit(s)", o.ID, o.Date.Format(time.DateOnly), o.Units)
			if o.Email != "" {
				fmt.Fprintf(w, "  %s", o.Email)
			}
			fmt.Fprintln(w)
			for _, l := range o.Lines {
				fmt.Fprintf(w, "  %-24s %d\n", l.Key, l.Qty)
			}
		}
	})
}
