package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/internal/listing"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

func newListCmd(a *app) *cobra.Command {
	var (
		search string
		page   int
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List one page of a resource, optionally filtered by a search term",
		Long: `List loads every record of the resource, keeps those where any field
contains the search term (ignoring case) and prints one page of ten.

Example:
  shelf list products
  shelf list products --search sale --page 2
  shelf list orders --all --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, v, err := a.page(args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Load(cmd.Context()); err != nil {
				return err
			}
			p.Search(search)
			p.GoTo(page)
			st := v.State()
			out := cmd.OutOrStdout()

			if all {
				records := listing.Filter(st.Records, search)
				if a.flags.jsonMode {
					return printJSON(out, records)
				}
				return printTable(out, p.Schema(), records)
			}
			if a.flags.jsonMode {
				return printJSON(out, st.Listing)
			}
			if err := printTable(out, p.Schema(), st.Listing.Items); err != nil {
				return err
			}
			fmt.Fprintf(out, "Page %d of %d (%d %s)\n",
				st.Listing.Number, max(st.Listing.TotalPages, 1), st.Listing.TotalItems, p.Schema().Plural)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "case-insensitive search term")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().BoolVar(&all, "all", false, "print every matching record instead of one page")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, v, err := a.page(args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Load(cmd.Context()); err != nil {
				return err
			}
			rec, ok := findRecord(v.State().Records, p.Schema().Key(), args[1])
			if !ok {
				return userError(fmt.Errorf("%s %q: %w", p.Schema().Singular, args[1], types.ErrNotFound))
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			return printRecord(cmd.OutOrStdout(), p.Schema(), rec)
		},
	}
}

func findRecord(records []types.Record, key, id string) (types.Record, bool) {
	for _, r := range records {
		if r.ID(key) == id {
			return r, true
		}
	}
	return nil, false
}
