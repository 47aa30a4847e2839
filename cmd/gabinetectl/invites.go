package main

import (
	"fmt"

	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/spf13/cobra"
)

var invitesCmd = &cobra.Command{
	Use:   "invites",
	Short: "Manage tenant invitations",
}

var invitesListCmd = &cobra.Command{
	Use:   "list <tenant-id>",
	Short: "List a tenant's invitations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		invs, err := s.ListInvites(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, invs)
	},
}

var inviteRole string

var invitesCreateCmd = &cobra.Command{
	Use:   "create <tenant-id> <email>",
	Short: "Invite an email address into a tenant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		inv, err := s.CreateInvite(cmd.Context(), args[0], gabinetesdk.CreateInviteRequest{
			Email: args[1],
			Role:  inviteRole,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, inv)
	},
}

var invitesRevokeCmd = &cobra.Command{
	Use:   "revoke <invitation-id>",
	Short: "Revoke a pending invitation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		if err := s.RevokeInvite(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "invitation %s revoked\n", args[0])
		return nil
	},
}

var invitesResendCmd = &cobra.Command{
	Use:   "resend <invitation-id>",
	Short: "Send a pending invitation again with a fresh token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		inv, err := s.ResendInvite(cmd.Context(), args[0])
		if gabinetesdk.IsRateLimited(err) {
			return fmt.Errorf("invitation %s was resent too often, try again later", args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, inv)
	},
}

var invitesAcceptCmd = &cobra.Command{
	Use:   "accept <token>",
	Short: "Accept an invitation as the session's user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		inv, err := s.AcceptInvite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, inv)
	},
}

func init() {
	invitesCreateCmd.Flags().StringVar(&inviteRole, "role", "user", "role granted on acceptance (user or admin)")

	invitesCmd.AddCommand(
		invitesListCmd,
		invitesCreateCmd,
		invitesRevokeCmd,
		invitesResendCmd,
		invitesAcceptCmd,
	)
}
