package order

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/kcmvp/orderdesk/cmd/internal"
	"github.com/kcmvp/orderdesk/entity"
	"github.com/kcmvp/orderdesk/intake"
	"github.com/kcmvp/orderdesk/validator"
	"github.com/spf13/cobra"
)

// ErrRejected is returned when the submitted order does not pass validation.
var ErrRejected = errors.New("order rejected")

// New returns the order command group.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Submit and list orders from the command line.",
	}
	cmd.AddCommand(submitCmd(), recentCmd())
	return cmd
}

func submitCmd() *cobra.Command {
	var draft validator.Draft
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Validate and save one order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := internal.FromContext(cmd.Context())
			st, err := rt.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			receipt, err := rt.Service(st).SubmitDraft(cmd.Context(), draft)
			if msgs := validator.Messages(err); msgs != nil {
				red := color.New(color.FgRed)
				for _, msg := range msgs {
					_, _ = red.Fprintf(out, "❌ %s\n", msg)
				}
				return fmt.Errorf("%w: %d problem(s)", ErrRejected, len(msgs))
			}
			if err != nil {
				return err
			}
			_, _ = color.New(color.FgGreen).Fprintf(out, "✅ Order saved successfully! (id %d)\n", receipt.OrderID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&draft.CustomerName, "name", "", "customer name")
	f.StringVar(&draft.Email, "email", "", "customer email")
	f.StringVar(&draft.ProductName, "product", "", "product name")
	f.StringVar(&draft.Quantity, "quantity", "1", "quantity, an integer greater than 0")
	f.StringVar(&draft.Note, "note", "", "optional note")
	return cmd
}

func recentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent orders, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := internal.FromContext(cmd.Context())
			st, err := rt.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			orders, err := rt.Service(st).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printOrders(cmd.OutOrStdout(), orders)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", intake.DefaultLimit, "maximum number of orders to list")
	return cmd
}

func printOrders(out io.Writer, orders []entity.Order) {
	if len(orders) == 0 {
		_, _ = fmt.Fprintln(out, "No records yet.")
		return
	}
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(out, "%-6s %-20s %-28s %-16s %4s  %-19s  %s\n", "ID", "CUSTOMER", "EMAIL", "PRODUCT", "QTY", "CREATED", "NOTE")
	for _, o := range orders {
		_, _ = fmt.Fprintf(out, "%-6s %-20s %-28s %-16s %4d  %-19s  %s\n",
			strconv.FormatInt(o.OrderID, 10), o.CustomerName, o.Email, o.ProductName, o.Quantity,
			o.CreatedAt.Local().Format("2006-01-02 15:04:05"), o.Note)
	}
}
