package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete a record after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, v, err := a.page(args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			id := args[1]
			if err := p.Load(cmd.Context()); err != nil {
				return err
			}
			if err := p.Delete(id); err != nil {
				return userError(fmt.Errorf("delete %s: %w", p.Schema().Name, err))
			}

			if !yes {
				fmt.Fprintf(cmd.ErrOrStderr(), "Delete %s %s? [y/N]: ", strings.ToLower(p.Schema().Singular), id)
				answer, err := a.readLine()
				if err != nil || !confirmed(answer) {
					p.CancelDelete()
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}
			if err := p.ConfirmDelete(cmd.Context()); err != nil {
				return err
			}
			printNotice(cmd.OutOrStdout(), v.State())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func confirmed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
