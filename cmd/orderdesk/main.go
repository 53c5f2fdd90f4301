package main

import (
	"github.com/kcmvp/orderdesk/cmd/internal"
	"github.com/kcmvp/orderdesk/cmd/orderdesk/order"
	"github.com/kcmvp/orderdesk/cmd/orderdesk/schema"
	"github.com/kcmvp/orderdesk/cmd/orderdesk/serve"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:   "orderdesk",
		Short: "orderdesk takes customer orders and keeps them in a relational database.",
		Long: `orderdesk serves an order entry form and JSON API, and offers the same
validation and storage pipeline from the command line.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsRuntime(cmd) {
				return nil
			}
			rt, err := internal.Bootstrap(configFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmd.SetContext(internal.WithRuntime(cmd.Context(), rt))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: application.yml in the project root or working directory)")
	root.AddCommand(serve.New(), schema.New(), order.New())
	return root
}

// needsRuntime reports whether cmd works on the configured database.
// Help and shell completion must work without any configuration.
func needsRuntime(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func main() {
	root := newRootCmd()
	root.SilenceErrors = true
	if err := root.Execute(); err != nil {
		internal.Fail(err)
	}
}
