// Command crdgen writes the Echo CustomResourceDefinition manifest.
package main

import (
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/imjasonh/echo-operator/echo"
	"github.com/spf13/cobra"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:          "crdgen",
		Short:        "Write the Echo CRD manifest",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := clog.WithLogger(cmd.Context(), clog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)))

			written, err := echo.WriteCustomResourceDefinition(output)
			if err != nil {
				return err
			}
			if written {
				clog.InfoContext(ctx, "wrote CRD", "path", output)
			} else {
				clog.InfoContext(ctx, "CRD unchanged", "path", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "config/crd/echo-crd.yaml", "Path to write the CRD manifest to")
	return cmd
}
