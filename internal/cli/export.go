package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/shelf/internal/export"
	"github.com/mesh-intelligence/shelf/internal/listing"
)

func newExportCmd(a *app) *cobra.Command {
	var format, output, search string
	cmd := &cobra.Command{
		Use:   "export <resource>",
		Short: "Export every record of a resource as JSON, CSV or YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isFormat(format) {
				return userError(fmt.Errorf("%w: %q (want one of %s)", export.ErrUnknownFormat, format, strings.Join(export.Formats, ", ")))
			}
			p, v, err := a.page(args[0])
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.Load(cmd.Context()); err != nil {
				return err
			}
			records := listing.Filter(v.State().Records, search)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return systemError(fmt.Errorf("create output: %w", err))
				}
				defer f.Close()
				w = f
			}
			if err := export.Write(w, format, records, p.Schema().Key()); err != nil {
				if errors.Is(err, export.ErrUnknownFormat) {
					return userError(err)
				}
				return systemError(fmt.Errorf("export: %w", err))
			}
			if output != "" && output != "-" {
				a.logger.Info("exported", zap.Int("records", len(records)), zap.String("path", output))
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d %s to %s\n", len(records), strings.ToLower(p.Schema().Plural), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatJSON, "output format: "+strings.Join(export.Formats, ", "))
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "export only records matching the search term")
	return cmd
}

func isFormat(f string) bool {
	for _, known := range export.Formats {
		if strings.EqualFold(f, known) {
			return true
		}
	}
	return false
}
