package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountrepo "memodams/backend/internal/account/repository"
	auditrepo "memodams/backend/internal/audit/repository"
	"memodams/backend/internal/config"
	devicerepo "memodams/backend/internal/device/repository"
	identityrepo "memodams/backend/internal/identity/repository"
	"memodams/backend/internal/logging"
	profilerepo "memodams/backend/internal/profile/repository"
	"memodams/backend/internal/security"
	sessionrepo "memodams/backend/internal/session/repository"
)

type harness struct {
	env      *Env
	accounts *accountrepo.MemoryRepository
	audit    *auditrepo.MemoryRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	h := &harness{accounts: accountrepo.NewMemoryRepository(), audit: auditrepo.NewMemoryRepository()}
	h.env = NewEnv(Repos{
		Accounts:   h.accounts,
		Identities: identityrepo.NewMemoryRepository(),
		Sessions:   sessionrepo.NewMemoryRepository(),
		Profiles:   profilerepo.NewMemoryRepository(),
		Devices:    devicerepo.NewMemoryRepository(),
		Audit:      h.audit,
	}, tokens, security.NewHasher(4), &config.Config{AppBaseURL: "http://app.test"}, logging.Nop())
	return h
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func(context.Context) (*Env, error) { return h.env, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAccountCreateAndBootstrap(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "secret1\n", "account", "create", "--email", "Root@Example.com", "--password-stdin", "--verified", "--format", "json")
	require.NoError(t, err)
	var created accountView
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "root@example.com", created.Email)
	assert.True(t, created.EmailVerified)

	out, err = h.run(t, "", "admin", "bootstrap", "--email", "root@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "granted admin to "+created.ID)

	acct, _ := h.accounts.GetByID(context.Background(), created.ID)
	assert.True(t, acct.Admin)

	out, err = h.run(t, "", "admin", "stats", "--format", "json")
	require.NoError(t, err)
	var stats map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, map[string]int{"total_users": 1, "verified_users": 1, "admin_users": 1}, stats)

	out, err = h.run(t, "", "account", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "root@example.com")
}

func TestAccountCreate_WeakPassword(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "abc\n", "account", "create", "--email", "a@example.com", "--password-stdin")
	require.Error(t, err)
}

func TestAdminBootstrap_UnknownEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "admin", "bootstrap", "--email", "ghost@example.com")
	require.Error(t, err)
}

func TestDevicesListAndRevoke(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.env.Devices.MarkDeviceVerified(ctx, "u1", "dev-1", "Firefox"))

	out, err := h.run(t, "", "devices", "list", "--account", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "dev-1")
	assert.Contains(t, out, "Firefox")

	_, err = h.run(t, "", "devices", "revoke", "--account", "u1", "--device", "dev-1")
	require.NoError(t, err)
	ok, err := h.env.Devices.IsDeviceVerified(ctx, "u1", "dev-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.run(t, "", "devices", "revoke", "--account", "u1", "--device", "nope")
	require.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "admin", "stats", "--format", "xml")
	require.Error(t, err)
}
