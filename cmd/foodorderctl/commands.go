package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iurnickita/foodorder/internal/client"
	"github.com/iurnickita/foodorder/internal/token"
	"github.com/iurnickita/foodorder/internal/token/config"
)

func settleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle [order-id]",
		Short: "Pay the remaining balance of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseID(args[0])
			if err != nil {
				return err
			}
			paymentTypeID, _ := cmd.Flags().GetInt64("type")
			req := client.SettleRequest{OrderID: orderID, PaymentTypeID: paymentTypeID}
			if cmd.Flags().Changed("tx") {
				transactionID, _ := cmd.Flags().GetString("tx")
				req.TransactionID = &transactionID
			}
			if cmd.Flags().Changed("amount") {
				amount, _ := cmd.Flags().GetString("amount")
				req.Amount = &amount
			}

			payment, err := apiClient(cmd).Settle(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payment)
		},
	}

	cmd.Flags().Int64P("type", "t", 0, "payment type id")
	cmd.Flags().String("tx", "", "external gateway transaction reference")
	cmd.Flags().String("amount", "", "expected amount, must equal the remaining balance")
	cmd.MarkFlagRequired("type")

	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [order-id]",
		Short: "Show total, paid and remaining amounts of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseID(args[0])
			if err != nil {
				return err
			}
			balance, err := apiClient(cmd).OrderBalance(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balance)
		},
	}
}

func orderPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order-payments [order-id]",
		Short: "List payments recorded against an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseID(args[0])
			if err != nil {
				return err
			}
			payments, err := apiClient(cmd).OrderPayments(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payments)
		},
	}
}

func paymentTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payment-types",
		Short: "List payment methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentTypes, err := apiClient(cmd).PaymentTypes(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), paymentTypes)
		},
	}
}

func paymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "List all payments (admin token required)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var query client.PaymentsQuery
			query.UserID, _ = cmd.Flags().GetInt64("user")
			query.OrderID, _ = cmd.Flags().GetInt64("order")
			query.Page, _ = cmd.Flags().GetInt("page")
			query.PerPage, _ = cmd.Flags().GetInt("per-page")

			page, err := apiClient(cmd).Payments(cmd.Context(), query)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page)
		},
	}

	cmd.Flags().Int64("user", 0, "filter by payer id")
	cmd.Flags().Int64("order", 0, "filter by order id")
	cmd.Flags().Int("page", 0, "page number")
	cmd.Flags().Int("per-page", 0, "page size")

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development token signed with the shared secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				return errors.New("secret is required (--secret or FOODORDER_TOKEN_SECRET)")
			}
			userID, _ := cmd.Flags().GetInt64("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			tokenString, err := token.NewToken(config.Config{SecretKey: secret, TokenExp: ttl}).BuildJWTString(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tokenString)
			return nil
		},
	}

	cmd.Flags().Int64("user", 0, "user id")
	cmd.Flags().String("role", token.RoleUser, "role (user, admin)")
	cmd.Flags().String("secret", os.Getenv("FOODORDER_TOKEN_SECRET"), "token secret")
	cmd.Flags().Duration("ttl", 0, "token lifetime, no expiry when 0")
	cmd.MarkFlagRequired("user")

	return cmd
}

func apiClient(cmd *cobra.Command) client.Client {
	addr, _ := cmd.Flags().GetString("addr")
	tokenString, _ := cmd.Flags().GetString("token")
	return client.NewClient(addr, tokenString)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
