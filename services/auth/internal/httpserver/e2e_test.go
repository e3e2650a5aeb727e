package httpserver

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/authtrust/pkg/authclient"
	"github.com/Skotchmaster/authtrust/pkg/revcache"
	"github.com/Skotchmaster/authtrust/pkg/tokens"
	"github.com/Skotchmaster/authtrust/pkg/verifier"
)

type cacheClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *cacheClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *cacheClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Issue, verify, revoke, and watch two relying parties converge: one with an
// empty cache sees the revocation at once, one with a cached clean entry sees
// it exactly one cache TTL later.
func TestEndToEnd_RevocationPropagation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	issuer := httptest.NewServer(s.e)
	defer issuer.Close()

	client := authclient.NewClient(issuer.URL, "orders", time.Second)
	newRelyingParty := func(clk *cacheClock) *verifier.Verifier {
		return verifier.New(verifier.Config{Secret: []byte("test-jwt-secret")}, client,
			revcache.New(revcache.DefaultTTL, revcache.WithClock(clk.Now)), nil)
	}

	ctx := context.Background()
	principal := tokens.Principal{UserID: 1, Role: "USER"}
	pair, err := s.svc.Issue(ctx, principal)
	require.NoError(t, err)

	warmClock := &cacheClock{t: time.Now()}
	warm := newRelyingParty(warmClock)

	d, err := warm.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, principal, d.Principal)

	require.NoError(t, s.svc.Revoke(ctx, pair.AccessToken))

	cold := newRelyingParty(&cacheClock{t: time.Now()})
	_, err = cold.Verify(ctx, pair.AccessToken)
	var rej *verifier.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, tokens.CodeTokenRevoked, rej.Code)

	_, err = warm.Verify(ctx, pair.AccessToken)
	require.NoError(t, err, "stale clean entry is honoured within the TTL")

	warmClock.Advance(revcache.DefaultTTL)
	_, err = warm.Verify(ctx, pair.AccessToken)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, tokens.CodeTokenRevoked, rej.Code)
}

func TestEndToEnd_RemoteOnlyRelyingParty(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	issuer := httptest.NewServer(s.e)
	defer issuer.Close()

	v := verifier.New(verifier.Config{}, authclient.NewClient(issuer.URL, "orders", time.Second), nil, nil)

	pair, err := s.svc.Issue(context.Background(), tokens.Principal{UserID: 2, Username: "remote", Role: "ADMIN"})
	require.NoError(t, err)

	d, err := v.Verify(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, verifier.PathRemote, d.Path)
	assert.Equal(t, "ADMIN", d.Principal.Role)

	_, err = v.Verify(context.Background(), "junk")
	var rej *verifier.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, tokens.CodeTokenInvalid, rej.Code)

	unknown := verifier.New(verifier.Config{}, authclient.NewClient(issuer.URL, "billing", time.Second), nil, nil)
	_, err = unknown.Verify(context.Background(), pair.AccessToken)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, tokens.CodeTokenInvalid, rej.Code)
}

func TestEndToEnd_IssuerDown(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	issuer := httptest.NewServer(s.e)
	issuer.Close()

	pair, err := s.svc.Issue(context.Background(), tokens.Principal{UserID: 3, Role: "USER"})
	require.NoError(t, err)

	client := authclient.NewClient(issuer.URL, "orders", 200*time.Millisecond)
	open := verifier.New(verifier.Config{Secret: []byte("test-jwt-secret")}, client, nil, nil)
	d, err := open.Verify(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, d.Degraded)

	closed := verifier.New(verifier.Config{Secret: []byte("test-jwt-secret"), Policy: verifier.FailClosed}, client, nil, nil)
	_, err = closed.Verify(context.Background(), pair.AccessToken)
	var rej *verifier.Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, tokens.CodeServerError, rej.Code)
}
