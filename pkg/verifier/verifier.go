// Package verifier decides, per request, whether a relying party trusts a
// bearer credential minted by the issuer.
//
// A token is first checked locally when the shared secret is held. A locally
// valid token is then checked against the revocation cache; on a miss the
// issuer's validation endpoint is asked once and the answer is cached for one
// cache TTL. Without the secret, or when the local check is inconclusive, the
// issuer decides on its own.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/authtrust/pkg/authclient"
	"github.com/Skotchmaster/authtrust/pkg/logging"
	"github.com/Skotchmaster/authtrust/pkg/metrics"
	"github.com/Skotchmaster/authtrust/pkg/revcache"
	"github.com/Skotchmaster/authtrust/pkg/tokens"
)

type Path string

const (
	PathLocal  Path = "local"
	PathRemote Path = "remote"
)

// FailPolicy is what happens to a locally valid token when the issuer cannot
// be reached for the revocation check.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	FailClosed
)

type Decision struct {
	Principal tokens.Principal
	Path      Path
	// Degraded is set when the token was accepted without a revocation answer.
	Degraded bool
}

// Validator is the issuer's remote validation endpoint.
type Validator interface {
	Validate(ctx context.Context, accessToken string) (*authclient.ValidateResponse, error)
}

type Config struct {
	// Secret is the access-token signing secret. Empty means every token is
	// verified remotely.
	Secret        []byte
	Issuer        string
	Audience      string
	Policy        FailPolicy
	RemoteTimeout time.Duration
	Now           func() time.Time
}

type Verifier struct {
	parser  *tokens.Parser
	remote  Validator
	cache   *revcache.Cache
	policy  FailPolicy
	timeout time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
}

func New(cfg Config, remote Validator, cache *revcache.Cache, m *metrics.Metrics) *Verifier {
	if cfg.Issuer == "" {
		cfg.Issuer = tokens.DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = tokens.DefaultAudience
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = authclient.DefaultTimeout
	}
	if cache == nil {
		cache = revcache.New(revcache.DefaultTTL)
	}
	if m == nil {
		m = metrics.New("relying_party")
	}

	v := &Verifier{
		remote:  remote,
		cache:   cache,
		policy:  cfg.Policy,
		timeout: cfg.RemoteTimeout,
		metrics: m,
	}
	if len(cfg.Secret) > 0 {
		p := tokens.NewParser(cfg.Secret, cfg.Issuer, cfg.Audience)
		if cfg.Now != nil {
			p = p.WithClock(cfg.Now)
		}
		v.parser = p
	}
	return v
}

func (v *Verifier) Cache() *revcache.Cache { return v.cache }

// Verify returns a Decision or a *Rejection.
func (v *Verifier) Verify(ctx context.Context, token string) (*Decision, error) {
	d, err := v.verify(ctx, token)
	if err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			v.metrics.Decisions.WithLabelValues(string(rej.Code), string(rej.path)).Inc()
		}
		return nil, err
	}
	v.metrics.Decisions.WithLabelValues("accepted", string(d.Path)).Inc()
	return d, nil
}

func (v *Verifier) verify(ctx context.Context, token string) (*Decision, error) {
	if token == "" {
		return nil, reject(tokens.CodeNoToken, PathLocal, nil)
	}

	if v.parser != nil {
		claims, err := v.parser.Parse(token, tokens.UseAccess)
		if err == nil {
			return v.checkRevocation(ctx, token, claims.Principal)
		}
		if code := tokens.Classify(err); code != "" {
			return nil, reject(code, PathLocal, err)
		}
		logging.FromContext(ctx).Debug("local_verification_inconclusive", "error", err)
	}

	return v.verifyRemote(ctx, token)
}

func (v *Verifier) checkRevocation(ctx context.Context, token string, p tokens.Principal) (*Decision, error) {
	if e, ok := v.cache.Get(token); ok {
		v.metrics.CacheLookups.WithLabelValues("hit").Inc()
		if e.Blacklisted {
			return nil, reject(tokens.CodeTokenRevoked, PathLocal, nil)
		}
		return &Decision{Principal: p, Path: PathLocal}, nil
	}
	v.metrics.CacheLookups.WithLabelValues("miss").Inc()

	res, err := v.lookup(ctx, token)
	if err != nil {
		l := logging.FromContext(ctx)
		if v.policy == FailOpen {
			l.Warn("revocation_check_unavailable", "policy", "fail_open", "user_id", p.UserID, "error", err)
			return &Decision{Principal: p, Path: PathLocal, Degraded: true}, nil
		}
		l.Error("revocation_check_unavailable", "policy", "fail_closed", "user_id", p.UserID, "error", err)
		return nil, reject(tokens.CodeServerError, PathLocal, err)
	}

	if res.Valid {
		return &Decision{Principal: p, Path: PathLocal}, nil
	}
	return nil, rejectRemote(res, PathLocal)
}

func (v *Verifier) verifyRemote(ctx context.Context, token string) (*Decision, error) {
	if e, ok := v.cache.Get(token); ok && e.Blacklisted {
		v.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return nil, reject(tokens.CodeTokenRevoked, PathRemote, nil)
	}

	res, err := v.lookup(ctx, token)
	if err != nil {
		logging.FromContext(ctx).Warn("remote_verification_failed", "error", err)
		return nil, reject(tokens.CodeTokenInvalid, PathRemote, err)
	}
	if !res.Valid {
		return nil, rejectRemote(res, PathRemote)
	}
	if res.User == nil {
		return nil, reject(tokens.CodeTokenInvalid, PathRemote, errors.New("validation response has no user"))
	}
	return &Decision{Principal: *res.User, Path: PathRemote}, nil
}

// lookup asks the issuer about token. Concurrent lookups for the same token
// share one call. The call runs detached from the request with its own
// timeout, so an abandoned request still lets the answer reach the cache.
func (v *Verifier) lookup(ctx context.Context, token string) (*authclient.ValidateResponse, error) {
	if v.remote == nil {
		return nil, errors.New("no remote validator configured")
	}

	ch := v.group.DoChan(token, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
		defer cancel()

		start := time.Now()
		res, err := v.remote.Validate(callCtx, token)
		v.metrics.RemoteTime.Observe(time.Since(start).Seconds())
		if err != nil {
			v.metrics.RemoteCalls.WithLabelValues("error").Inc()
			return nil, err
		}
		v.metrics.RemoteCalls.WithLabelValues("ok").Inc()

		switch {
		case res.Valid:
			v.cache.Set(token, false)
		case res.Error == tokens.CodeTokenRevoked:
			v.cache.Set(token, true)
		}
		return res, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*authclient.ValidateResponse), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for remote validation: %w", ctx.Err())
	}
}

func rejectRemote(res *authclient.ValidateResponse, path Path) error {
	switch res.Error {
	case tokens.CodeTokenRevoked, tokens.CodeTokenExpired:
		return reject(res.Error, path, nil)
	default:
		return reject(tokens.CodeTokenInvalid, path, fmt.Errorf("issuer rejected token: %s", res.Error))
	}
}

