package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
	"github.com/gokatarajesh/mortgage-trainer/internal/mail"
)

// manualPaymentPrefix marks tokens granted without a gateway payment.
const manualPaymentPrefix = "manual_"

func newPromoteAdminCmd(open Opener) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "promote-admin",
		Short: "Grant the admin flag to an existing account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, func(rt *Runtime, out io.Writer) error {
				user, err := rt.Services.Auth.PromoteAdmin(cmd.Context(), email)
				if err != nil {
					if errors.Is(err, auth.ErrUserNotFound) {
						return fmt.Errorf("no account for %s", email)
					}
					return err
				}
				fmt.Fprintf(out, "%s (%s) is now an admin\n", user.Email, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newGrantAccessCmd(open Opener) *cobra.Command {
	var email, rawProduct string
	cmd := &cobra.Command{
		Use:   "grant-access",
		Short: "Issue an access token without a payment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			product, err := entitlement.ParseProduct(rawProduct)
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(rt *Runtime, out io.Writer) error {
				user, err := rt.Stores.Users.GetByEmail(cmd.Context(), email)
				if err != nil {
					if errors.Is(err, auth.ErrUserNotFound) {
						return fmt.Errorf("no account for %s", email)
					}
					return err
				}

				token, _, err := rt.Services.Entitlement.IssueToken(cmd.Context(),
					manualPaymentPrefix+uuid.NewString(), product, user.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "granted %s to %s (token %s)\n", token.Product, user.Email, token.Token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&rawProduct, "product", "", "exam, scenario or bundle")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func newSendCampaignCmd(open Opener) *cobra.Command {
	var (
		c        mail.Campaign
		htmlFile string
	)
	cmd := &cobra.Command{
		Use:   "send-campaign",
		Short: "Email every account that opted in to marketing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if htmlFile != "" {
				data, err := os.ReadFile(htmlFile)
				if err != nil {
					return fmt.Errorf("read html: %w", err)
				}
				c.HTML = string(data)
			}
			return withRuntime(cmd, open, func(rt *Runtime, out io.Writer) error {
				result, err := rt.Services.Campaigns.Send(cmd.Context(), c)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "sent %d of %d (%d failed)\n", result.Sent, result.Recipients, result.Failed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&c.Subject, "subject", "", "email subject")
	cmd.Flags().StringVar(&c.Text, "text", "", "plain text body")
	cmd.Flags().StringVar(&htmlFile, "html-file", "", "optional HTML body file")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
