package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"neo-dashboard/internal/models"
)

// addOrderCommands adds order commands.
func addOrderCommands(rootCmd *cobra.Command, app *App) {
	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "Place and manage orders",
	}
	orderCmd.AddCommand(newOrderPlaceCmd(app))
	orderCmd.AddCommand(newOrderModifyCmd(app))
	orderCmd.AddCommand(newOrderCancelCmd(app))
	orderCmd.AddCommand(newOrderListCmd(app))
	rootCmd.AddCommand(orderCmd)
}

type orderFlags struct {
	token    string
	segment  string
	side     string
	orderTyp string
	product  string
	quantity int
	price    float64
	trigger  float64
	amo      bool
}

func (f *orderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.token, "token", "", "instrument token")
	cmd.Flags().StringVar(&f.segment, "segment", "", "exchange segment (default from config)")
	cmd.Flags().StringVar(&f.side, "side", "", "B (buy) or S (sell)")
	cmd.Flags().StringVar(&f.orderTyp, "type", "MKT", "order type: MKT, L, SL, SL-M")
	cmd.Flags().StringVar(&f.product, "product", "", "product: MIS, CNC, NRML (default from config)")
	cmd.Flags().IntVar(&f.quantity, "qty", 1, "quantity")
	cmd.Flags().Float64Var(&f.price, "price", 0, "limit price")
	cmd.Flags().Float64Var(&f.trigger, "trigger", 0, "trigger price for SL orders")
	cmd.Flags().BoolVar(&f.amo, "amo", false, "after-market order")
}

func (f *orderFlags) build(app *App, symbol string) (*models.Order, error) {
	side := models.TransactionType(strings.ToUpper(f.side))
	if side != models.TransactionBuy && side != models.TransactionSell {
		return nil, fmt.Errorf("side must be B or S")
	}

	seg := app.Config.DefaultSegment()
	if f.segment != "" {
		seg = models.ExchangeSegment(f.segment)
	}
	product := models.ProductType(app.Config.Trading.DefaultProduct)
	if f.product != "" {
		product = models.ProductType(strings.ToUpper(f.product))
	}

	return &models.Order{
		Segment:      seg,
		Symbol:       symbol,
		Token:        f.token,
		Side:         side,
		Type:         models.OrderType(strings.ToUpper(f.orderTyp)),
		Product:      product,
		Quantity:     f.quantity,
		Price:        f.price,
		TriggerPrice: f.trigger,
		Validity:     "DAY",
		AMO:          f.amo,
	}, nil
}

func newOrderPlaceCmd(app *App) *cobra.Command {
	flags := &orderFlags{}

	cmd := &cobra.Command{
		Use:   "place <symbol>",
		Short: "Place an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			order, err := flags.build(app, args[0])
			if err != nil {
				return err
			}

			result, err := app.Orders.Place(cmd.Context(), order)
			if err != nil {
				return err
			}
			if order.Quantity != flags.quantity {
				output.Info("Quantity adjusted to lot size: %d", order.Quantity)
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			output.Success("✓ Order placed: %s (%s)", result.OrderID, result.Status)
			return nil
		},
	}

	flags.register(cmd)
	cmd.MarkFlagRequired("side")
	return cmd
}

func newOrderModifyCmd(app *App) *cobra.Command {
	flags := &orderFlags{}
	var symbol string

	cmd := &cobra.Command{
		Use:   "modify <order-id>",
		Short: "Modify an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			order, err := flags.build(app, symbol)
			if err != nil {
				return err
			}

			result, err := app.Orders.Modify(cmd.Context(), args[0], order)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			output.Success("✓ Order modified: %s (%s)", result.OrderID, result.Status)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&symbol, "symbol", "", "trading symbol")
	cmd.MarkFlagRequired("side")
	return cmd
}

func newOrderCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			result, err := app.Orders.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			output.Success("✓ Order cancelled: %s", result.OrderID)
			return nil
		},
	}
}

func newOrderListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the order book",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			rows, err := app.Orders.List(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Warning("No orders today")
				return nil
			}
			output.Bold("%-14s %-20s %-5s %-10s %8s %10s", "ORDER ID", "SYMBOL", "SIDE", "STATUS", "QTY", "PRICE")
			for _, row := range rows {
				output.Printf("%-14s %-20s %-5s %-10s %8d %10s\n",
					row.OrderID, row.Symbol, row.Side, row.Status, row.Quantity, FormatPrice(row.Price))
			}
			return nil
		},
	}
}
