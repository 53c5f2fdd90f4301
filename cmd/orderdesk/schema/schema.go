package schema

import (
	"github.com/fatih/color"
	"github.com/kcmvp/orderdesk/cmd/internal"
	"github.com/spf13/cobra"
)

// New returns the init command, which creates the orders table when it is missing.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the orders table if it does not exist.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := internal.FromContext(cmd.Context())
			st, err := rt.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			_, err = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✅ orders table is ready (%s)\n", st.Driver())
			return err
		},
	}
}
