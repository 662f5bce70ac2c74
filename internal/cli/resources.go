package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

func newResourcesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resources [resource]",
		Short: "List the storefront resources, or the fields of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				if a.flags.jsonMode {
					return printJSON(out, types.StandardSchemas)
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "RESOURCE\tNAME\tOPERATIONS")
				for _, s := range types.StandardSchemas {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Plural, operations(s))
				}
				return tw.Flush()
			}

			s, err := schema(args[0])
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(out, s)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FIELD\tKIND\tREQUIRED\tCONSTRAINTS")
			for _, f := range s.Fields {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", f.Name, f.Kind, f.Required, constraints(f))
			}
			return tw.Flush()
		},
	}
}

func operations(s types.Schema) string {
	ops := "list"
	if s.Creatable {
		ops += ",create"
	}
	if s.Editable {
		ops += ",update"
	}
	if s.Deletable {
		ops += ",delete"
	}
	return ops
}

func constraints(f types.Field) string {
	var out string
	add := func(s string) {
		if out != "" {
			out += " "
		}
		out += s
	}
	if f.Min != nil {
		add("min=" + types.FormatValue(*f.Min))
	}
	if f.Max != nil {
		add("max=" + types.FormatValue(*f.Max))
	}
	if len(f.Options) > 0 {
		add("one of " + types.FormatValue(f.Options))
	}
	if f.Default != nil {
		add("default=" + types.FormatValue(f.Default))
	}
	return out
}
