package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

func newReceiptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <order-id>",
		Short: "Print the receipt of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, v, err := a.page(types.ResourceOrders)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Load(cmd.Context()); err != nil {
				return err
			}
			order, ok := findRecord(v.State().Records, p.Schema().Key(), args[0])
			if !ok {
				return userError(fmt.Errorf("order %q: %w", args[0], types.ErrNotFound))
			}
			r, err := types.NewReceipt(order)
			if err != nil {
				return userError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), r)
			}
			printReceipt(cmd.OutOrStdout(), r)
			return nil
		},
	}
}

func printReceipt(w io.Writer, r types.Receipt) {
	rule := strings.Repeat("-", 36)
	fmt.Fprintln(w, "RECEIPT")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-16s%20s\n", "Order", r.OrderID)
	fmt.Fprintf(w, "%-16s%20s\n", "Customer", r.Customer)
	fmt.Fprintf(w, "%-16s%20s\n", "Date", r.Date)
	fmt.Fprintf(w, "%-16s%20s\n", "Payment", r.PaymentMethod)
	fmt.Fprintf(w, "%-16s%20s\n", "Status", r.Status)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-16s%20d\n", "Items", r.Items)
	fmt.Fprintf(w, "%-16s%20.2f\n", "Unit price", r.UnitPrice)
	fmt.Fprintf(w, "%-16s%20.2f\n", "Subtotal", r.Subtotal)
	fmt.Fprintf(w, "%-16s%20.2f\n", fmt.Sprintf("Tax (%.0f%%)", types.TaxRate*100), r.Tax)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-16s%20.2f\n", "Total", r.Total)
}
