package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kevin07696/donation-service/internal/adapters/dpo"
	"github.com/kevin07696/donation-service/internal/domain"
	donationService "github.com/kevin07696/donation-service/internal/services/donation"
)

func createTokenCmd(a *app) *cobra.Command {
	var (
		amount   string
		currency string
		name     string
		email    string
		open     bool
	)

	cmd := &cobra.Command{
		Use:   "create-token",
		Short: "Request a transaction token and print its payment URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount == "" {
				if currency == "" {
					currency = a.cfg.Donation.Currency
				}
				picked, err := a.selectAmount(a.cfg.Donation.Presets, currency)
				if err != nil {
					return err
				}
				amount = picked
			}

			svc, closeStore, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			checkout, err := svc.StartDonation(cmd.Context(), donationService.DonationInput{
				Amount:   amount,
				Currency: currency,
				Name:     name,
				Email:    email,
			})
			if err != nil {
				return cliError(err)
			}

			out := cmd.OutOrStdout()
			printField(out, "reference", checkout.Reference)
			printField(out, "amount", checkout.Amount+" "+checkout.Currency)
			printField(out, "token", checkout.Token)
			printField(out, "payment_url", checkout.PaymentURL)
			printField(out, "expires_at", checkout.ExpiresAt.Format("2006-01-02 15:04:05 MST"))

			if open {
				if err := a.openURL(checkout.PaymentURL); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error opening browser: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Donation amount; prompts with the presets when omitted")
	cmd.Flags().StringVarP(&currency, "currency", "c", "", "ISO currency code (default DONATION_CURRENCY)")
	cmd.Flags().StringVar(&name, "name", "", "Donor name")
	cmd.Flags().StringVar(&email, "email", "", "Donor email")
	cmd.Flags().BoolVar(&open, "open", false, "Open the payment page in a browser")

	return cmd
}

func verifyTokenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-token <token>",
		Short: "Verify a pending token with the gateway; the token is consumed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			verification, err := svc.VerifyToken(cmd.Context(), args[0])
			if err != nil {
				return cliError(err)
			}

			out := cmd.OutOrStdout()
			printField(out, "state", string(verification.State))
			printField(out, "result", verification.Result)
			printField(out, "explanation", verification.Explanation)

			keys := make([]string, 0, len(verification.Details))
			for k := range verification.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				printField(out, k, verification.Details[k])
			}

			if !verification.Paid() {
				return fmt.Errorf("token not paid: %s %s", verification.Result, verification.Explanation)
			}
			return nil
		},
	}
}

func paymentURLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "payment-url <token>",
		Short: "Print the hosted payment page URL for a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := dpo.BuildPaymentURL(a.cfg.Gateway.PaymentPageURL, args[0], a.cfg.Gateway.PageTimeout)
			if err != nil {
				return cliError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func printField(w io.Writer, key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(w, "%-14s %s\n", key+":", value)
}

// cliError prefixes the gateway result code so operators can look it up
func cliError(err error) error {
	if code := domain.ResultCode(err); code != "" {
		return fmt.Errorf("%s (result %s)", domain.UserMessage(err), code)
	}
	return fmt.Errorf("%s: %w", domain.UserMessage(err), err)
}
