package main

import (
	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/spf13/cobra"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Provision and manage tenants (super-admin)",
}

var tenantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every tenant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		tenants, err := s.ListTenants(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, tenants)
	},
}

var tenantsGetCmd = &cobra.Command{
	Use:   "get <tenant-id>",
	Short: "Show a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		tenant, err := s.GetTenant(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, tenant)
	},
}

var (
	createSlug  string
	createOwner string
)

var tenantsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Provision an active tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		tenant, err := s.CreateTenant(cmd.Context(), gabinetesdk.CreateTenantRequest{
			Name:        args[0],
			Slug:        createSlug,
			OwnerUserID: createOwner,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, tenant)
	},
}

var tenantsUpdateCmd = &cobra.Command{
	Use:   "update <tenant-id>",
	Short: "Change a tenant's name, slug or owner",
	Long:  `Only the flags given are changed. Pass --slug "" to clear the slug.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}

		var req gabinetesdk.UpdateTenantRequest
		flags := cmd.Flags()
		if flags.Changed("name") {
			v, _ := flags.GetString("name")
			req.Name = &v
		}
		if flags.Changed("slug") {
			v, _ := flags.GetString("slug")
			req.Slug = &v
		}
		if flags.Changed("owner") {
			v, _ := flags.GetString("owner")
			req.OwnerUserID = &v
		}

		tenant, err := s.UpdateTenant(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}
		return printJSON(cmd, tenant)
	},
}

var tenantsToggleCmd = &cobra.Command{
	Use:   "toggle <tenant-id>",
	Short: "Flip a tenant between active and inactive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		tenant, err := s.ToggleTenantStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, tenant)
	},
}

var tenantsMembersCmd = &cobra.Command{
	Use:   "members <tenant-id>",
	Short: "List the users who joined a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		members, err := s.ListMembers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, members)
	},
}

func init() {
	tenantsCreateCmd.Flags().StringVar(&createSlug, "slug", "", "URL slug (3-63 lowercase letters, digits, hyphens)")
	tenantsCreateCmd.Flags().StringVar(&createOwner, "owner", "", "owner user id (default: caller)")

	tenantsUpdateCmd.Flags().String("name", "", "new name")
	tenantsUpdateCmd.Flags().String("slug", "", "new slug")
	tenantsUpdateCmd.Flags().String("owner", "", "new owner user id")

	tenantsCmd.AddCommand(
		tenantsListCmd,
		tenantsGetCmd,
		tenantsCreateCmd,
		tenantsUpdateCmd,
		tenantsToggleCmd,
		tenantsMembersCmd,
	)
}
