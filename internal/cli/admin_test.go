package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/mortgage-trainer/internal/app"
	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/config"
	"github.com/gokatarajesh/mortgage-trainer/internal/entitlement"
)

func newMemoryRuntime(t *testing.T) (*Runtime, Opener) {
	t.Helper()
	cfg := &config.App{
		Name:        "trainer-test",
		StoreDriver: config.StoreDriverMemory,
		Security:    config.Security{JWTSecret: "secret"},
	}
	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	svcs, err := app.NewServices(ctx, cfg, stores, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	rt := &Runtime{Stores: stores, Services: svcs, Logger: zerolog.Nop()}
	return rt, func(context.Context) (*Runtime, func(), error) { return rt, func() {}, nil }
}

func run(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedUser(t *testing.T, rt *Runtime, email string, optIn bool) auth.User {
	t.Helper()
	user, err := rt.Stores.Users.Create(context.Background(), auth.User{Email: email, Name: "Seed", MarketingOptIn: optIn})
	require.NoError(t, err)
	return user
}

func TestPromoteAdmin(t *testing.T) {
	rt, open := newMemoryRuntime(t)
	user := seedUser(t, rt, "ops@example.com", false)

	out, err := run(t, open, "promote-admin", "--email", "OPS@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "is now an admin")

	got, err := rt.Stores.Users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	_, err = run(t, open, "promote-admin", "--email", "ghost@example.com")
	assert.ErrorContains(t, err, "no account for ghost@example.com")
}

func TestGrantAccess(t *testing.T) {
	rt, open := newMemoryRuntime(t)
	user := seedUser(t, rt, "buyer@example.com", false)

	out, err := run(t, open, "grant-access", "--email", "buyer@example.com", "--product", "bundle")
	require.NoError(t, err)
	assert.Contains(t, out, "granted bundle to buyer@example.com")

	ok, err := rt.Services.Entitlement.CheckAccess(context.Background(), user.ID, entitlement.ProductScenario)
	require.NoError(t, err)
	assert.True(t, ok)

	tokens, err := rt.Services.Entitlement.ListTokens(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Contains(t, tokens[0].PaymentIntentID, manualPaymentPrefix)

	_, err = run(t, open, "grant-access", "--email", "buyer@example.com", "--product", "gold")
	assert.ErrorIs(t, err, entitlement.ErrUnknownProduct)
}

func TestSendCampaign(t *testing.T) {
	rt, open := newMemoryRuntime(t)
	seedUser(t, rt, "a@example.com", true)
	seedUser(t, rt, "b@example.com", false)
	seedUser(t, rt, "c@example.com", true)

	out, err := run(t, open, "send-campaign", "--subject", "News", "--text", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "sent 2 of 2 (0 failed)")

	_, err = run(t, open, "send-campaign", "--subject", "News")
	assert.Error(t, err)
}
