package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/gabinete/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestDevKeygenAndToken(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.pem")
	jwksPath := filepath.Join(dir, "jwks.json")

	out := run(t, "dev", "keygen", "--key-out", keyPath, "--jwks-out", jwksPath, "--kid", "laptop")
	require.Contains(t, out, "kid laptop")

	token := strings.TrimSpace(run(t, "dev", "token",
		"--key", keyPath,
		"--kid", "laptop",
		"--sub", "user-1",
		"--email", "dev@example.com",
		"--role", "admin",
		"--tenant", "t1",
		"--issuer", "https://id.local",
		"--aud", "gabinete",
	))

	jwks, err := jwtx.LoadJWKSFile(jwksPath)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.ResetFromJWKS(jwks))

	claims, err := jwtx.NewVerifier(keys, jwtx.VerifyOptions{
		Issuer:   "https://id.local",
		Audience: []string{"gabinete"},
	}).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "dev@example.com", claims.Email)
	require.Equal(t, jwtx.RoleAdmin, claims.Role)
	require.Equal(t, "t1", claims.TenantID)
}

func TestSessionRequiresToken(t *testing.T) {
	t.Setenv("GABINETECTL_TOKEN", "")
	_, err := session()
	require.ErrorContains(t, err, "no session")
}
