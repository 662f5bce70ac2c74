package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <resource> [field=value...]",
		Short: "Create a record",
		Long: `Create opens a form with the resource's default values, applies the given
fields and submits it. Values are coerced to the field's kind; lists are
comma-separated or JSON arrays.

Example:
  shelf create products name="Desk lamp" price=24.5 stock=10
  shelf create banners title=Spring subtitle="New season" link=/spring position=2 status=inactive`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			p, v, err := a.page(args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Add(); err != nil {
				return userError(err)
			}
			if err := p.Submit(cmd.Context(), fields); err != nil {
				return err
			}
			st := v.State()
			created := st.Records[len(st.Records)-1]
			return a.printMutation(cmd, p.Schema(), st.Notice.Title, created)
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <resource> <id> field=value...",
		Short: "Update fields of a record",
		Long: `Update opens a form on the current record, applies the given fields and
submits it. Fields not named keep their current values.

Example:
  shelf update products 42 price=19.99 stock=3`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(args[2:])
			if err != nil {
				return err
			}
			p, v, err := a.page(args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Load(cmd.Context()); err != nil {
				return err
			}
			if err := p.Edit(args[1]); err != nil {
				return userError(fmt.Errorf("%s %q: %w", p.Schema().Singular, args[1], err))
			}
			if err := p.Submit(cmd.Context(), fields); err != nil {
				return err
			}
			st := v.State()
			updated, _ := findRecord(st.Records, p.Schema().Key(), args[1])
			return a.printMutation(cmd, p.Schema(), st.Notice.Title, updated)
		},
	}
}

func newToggleStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-status <resource> <id>",
		Short: "Switch a record between active and inactive",
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
			if err := p.ToggleStatus(cmd.Context(), args[1]); err != nil {
				return err
			}
			st := v.State()
			rec, _ := findRecord(st.Records, p.Schema().Key(), args[1])
			return a.printMutation(cmd, p.Schema(), st.Notice.Title, rec)
		},
	}
}

func (a *app) printMutation(cmd *cobra.Command, s types.Schema, title string, rec types.Record) error {
	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		return printJSON(out, rec)
	}
	fmt.Fprintln(out, title)
	return printRecord(out, s, rec)
}
