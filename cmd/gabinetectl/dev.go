package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aussiebroadwan/gabinete/pkg/cryptox"
	"github.com/aussiebroadwan/gabinete/pkg/jwtx"
	"github.com/spf13/cobra"
)

// devCmd stands in for the identity provider on a laptop: it writes a key
// pair the service can trust through GABINETE_IDP_JWKS_FILE and signs
// sessions with it.
var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Local identity provider helpers",
}

var (
	keygenKeyOut  string
	keygenJWKSOut string
	keygenKID     string
)

var devKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Write an Ed25519 signing key and the matching JWKS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pemKey, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return err
		}
		signer, err := jwtx.NewSignerEdDSA(keygenKID, pemKey)
		if err != nil {
			return err
		}

		jwks, err := json.MarshalIndent(jwtx.JWKS{Keys: []jwtx.JWK{signer.PublicJWK()}}, "", "  ")
		if err != nil {
			return err
		}

		if err := os.WriteFile(keygenKeyOut, pemKey, 0o600); err != nil {
			return fmt.Errorf("write key: %w", err)
		}
		if err := os.WriteFile(keygenJWKSOut, jwks, 0o644); err != nil {
			return fmt.Errorf("write jwks: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s (kid %s)\n", keygenKeyOut, keygenJWKSOut, keygenKID)
		return nil
	},
}

var (
	tokenKey      string
	tokenKID      string
	tokenSubject  string
	tokenEmail    string
	tokenRole     string
	tokenTenant   string
	tokenIssuer   string
	tokenAudience []string
	tokenTTL      time.Duration
)

var devTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an identity token with a key from keygen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pemKey, err := os.ReadFile(tokenKey)
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		signer, err := jwtx.NewSignerEdDSA(tokenKID, pemKey)
		if err != nil {
			return err
		}

		token, err := signer.Sign(jwtx.NewIdentityClaims(jwtx.IdentityInput{
			Subject:  tokenSubject,
			Email:    tokenEmail,
			Role:     tokenRole,
			TenantID: tokenTenant,
		}, tokenTTL, tokenIssuer, tokenAudience, time.Now()))
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	devKeygenCmd.Flags().StringVar(&keygenKeyOut, "key-out", "idp-key.pem", "private key output path")
	devKeygenCmd.Flags().StringVar(&keygenJWKSOut, "jwks-out", "jwks.json", "JWKS output path")
	devKeygenCmd.Flags().StringVar(&keygenKID, "kid", "dev-1", "key id")

	devTokenCmd.Flags().StringVar(&tokenKey, "key", "idp-key.pem", "private key written by keygen")
	devTokenCmd.Flags().StringVar(&tokenKID, "kid", "dev-1", "key id, must match keygen")
	devTokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "user id")
	devTokenCmd.Flags().StringVar(&tokenEmail, "email", "", "user email")
	devTokenCmd.Flags().StringVar(&tokenRole, "role", jwtx.RoleUser, "user, admin or super_admin")
	devTokenCmd.Flags().StringVar(&tokenTenant, "tenant", "", "tenant id the user belongs to")
	devTokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "", "iss claim, must match GABINETE_IDP_ISSUER")
	devTokenCmd.Flags().StringSliceVar(&tokenAudience, "aud", nil, "aud claim, must match GABINETE_IDP_AUDIENCE")
	devTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = devTokenCmd.MarkFlagRequired("sub")
	_ = devTokenCmd.MarkFlagRequired("email")

	devCmd.AddCommand(devKeygenCmd, devTokenCmd)
}
