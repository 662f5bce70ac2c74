package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/shelf/internal/store"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// summary is the dashboard's view of the storefront.
type summary struct {
	Users          int            `json:"users"`
	Orders         int            `json:"orders"`
	Products       int            `json:"products"`
	ActiveProducts int            `json:"active_products"`
	Revenue        float64        `json:"revenue"`
	OrdersByStatus map[string]int `json:"orders_by_status"`
}

var dashboardResources = []string{types.ResourceUsers, types.ResourceOrders, types.ResourceProducts}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize users, orders, products and revenue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			stores := make(map[string]*store.Store, len(dashboardResources))
			for _, name := range dashboardResources {
				s, err := schema(name)
				if err != nil {
					return err
				}
				st := store.New(c, s, store.WithLogger(a.logger))
				defer st.Close()
				stores[name] = st
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			for _, st := range stores {
				g.Go(func() error { return st.Load(ctx) })
			}
			if err := g.Wait(); err != nil {
				return err
			}

			sum := summarize(stores[types.ResourceUsers].Records(),
				stores[types.ResourceOrders].Records(),
				stores[types.ResourceProducts].Records())
			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return printJSON(out, sum)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Users\t%d\n", sum.Users)
			fmt.Fprintf(tw, "Products\t%d (%d active)\n", sum.Products, sum.ActiveProducts)
			fmt.Fprintf(tw, "Orders\t%d\n", sum.Orders)
			for _, status := range sortedKeys(sum.OrdersByStatus) {
				fmt.Fprintf(tw, "  %s\t%d\n", status, sum.OrdersByStatus[status])
			}
			fmt.Fprintf(tw, "Revenue\t%.2f\n", sum.Revenue)
			return tw.Flush()
		},
	}
}

func summarize(users, orders, products []types.Record) summary {
	s := summary{
		Users:          len(users),
		Orders:         len(orders),
		Products:       len(products),
		OrdersByStatus: map[string]int{},
	}
	for _, p := range products {
		if p["status"] == nil || p["status"] == types.StatusActive {
			s.ActiveProducts++
		}
	}
	for _, o := range orders {
		if total, ok := types.NumericValue(o["total"]); ok {
			s.Revenue += total
		}
		if status := types.FormatValue(o["status"]); status != "" {
			s.OrdersByStatus[status]++
		}
	}
	return s
}
