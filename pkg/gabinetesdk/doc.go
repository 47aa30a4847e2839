/*
Package gabinetesdk is a client for the gabinete tenancy service, and the home
of its wire types.

# Client vs Session

Client covers the public endpoints (health, nothing else). A Session carries
an identity token issued by the identity provider and covers everything that
needs a caller:

	client := gabinetesdk.NewClient("https://tenancy.example.com")

	health, err := client.GetReadiness(ctx)

	session := client.NewSession(idToken)
	tenant, err := session.CreateTenant(ctx, gabinetesdk.CreateTenantRequest{Name: "Acme"})
	invite, err := session.CreateInvite(ctx, tenant.ID, gabinetesdk.CreateInviteRequest{
		Email: "owner@acme.example",
		Role:  "admin",
	})

Sessions do not refresh tokens; the identity provider owns that. Swap the
token with SetToken when it rotates. A Session is safe for concurrent use.

# Errors

Every non-2xx response is returned as *APIError carrying the HTTP status and
the service's error code:

	_, err := session.ResendInvite(ctx, id)
	if gabinetesdk.IsRateLimited(err) {
		// back off
	}
*/
package gabinetesdk
