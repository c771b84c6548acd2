package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCredentialCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Drive the GST credential OTP flow",
	}
	cmd.AddCommand(newCredentialStatusCmd(root))
	cmd.AddCommand(newCredentialOTPCmd(root))
	cmd.AddCommand(newCredentialAuthenticateCmd(root))
	return cmd
}

func credentialID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--id must be a UUID: %w", err)
	}
	return id, nil
}

func newCredentialStatusCmd(root *rootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the backend's auth-status for a credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			credID, err := credentialID(id)
			if err != nil {
				return err
			}
			client, err := root.client()
			if err != nil {
				return err
			}
			report, err := client.AuthStatus(cmd.Context(), credID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Credential ID")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newCredentialOTPCmd(root *rootOptions) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Request an OTP and print the transaction id",
		RunE: func(cmd *cobra.Command, args []string) error {
			credID, err := credentialID(id)
			if err != nil {
				return err
			}
			client, err := root.client()
			if err != nil {
				return err
			}
			txn, err := client.RequestOTP(cmd.Context(), credID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"transactionId": txn})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Credential ID")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newCredentialAuthenticateCmd(root *rootOptions) *cobra.Command {
	var id, otp, txn string
	cmd := &cobra.Command{
		Use:   "authenticate",
		Short: "Exchange an OTP for a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			credID, err := credentialID(id)
			if err != nil {
				return err
			}
			client, err := root.client()
			if err != nil {
				return err
			}
			cred, err := client.Authenticate(cmd.Context(), credID, otp, txn)
			if err != nil {
				return err
			}
			out := map[string]interface{}{
				"id":         cred.ID,
				"authStatus": cred.AuthStatus,
			}
			if cred.Token != nil {
				out["tokenExpiry"] = cred.Token.Expiry
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Credential ID")
	cmd.Flags().StringVar(&otp, "otp", "", "One-time passcode")
	cmd.Flags().StringVar(&txn, "transaction", "", "Transaction id from the otp command")
	for _, name := range []string{"id", "otp", "transaction"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
