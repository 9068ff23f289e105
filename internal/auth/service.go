// Package auth implements the account and session lifecycle: register,
// login with lockout, refresh token rotation with reuse detection, and
// session revocation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/literati-app/auth-service/internal/audit"
	"github.com/literati-app/auth-service/internal/metrics"
	"github.com/literati-app/auth-service/internal/models"
	"github.com/literati-app/auth-service/internal/password"
	"github.com/literati-app/auth-service/internal/store"
	"github.com/literati-app/auth-service/internal/token"
)

// blacklistGrace keeps consumed-token entries alive a little past the
// token's own expiry so clock skew cannot open a replay window.
const blacklistGrace = time.Hour

// Config bounds service-level behavior.
type Config struct {
	// StoreTimeout caps every token/lockout store round trip.
	StoreTimeout time.Duration
	// LockoutMaxAttempts failed logins inside LockoutWindow lock the account.
	LockoutMaxAttempts int
	LockoutWindow      time.Duration
	// ReuseInterval keeps a settled rotation's result available to
	// duplicates of the consumed token that arrive just after the first
	// caller finished. Presentations past the interval count as reuse.
	// Zero selects the default, negative disables the window.
	ReuseInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if c.LockoutMaxAttempts <= 0 {
		c.LockoutMaxAttempts = 5
	}
	if c.LockoutWindow <= 0 {
		c.LockoutWindow = 15 * time.Minute
	}
	if c.ReuseInterval == 0 {
		c.ReuseInterval = 10 * time.Second
	}
}

// Service wires the token codec, stores and observability together.
type Service struct {
	cfg      Config
	codec    *token.Codec
	users    store.UserStore
	families store.FamilyStore
	lockouts store.LockoutStore
	hasher   *password.Hasher
	log      *logrus.Logger
	audit    *audit.Dispatcher
	metrics  *metrics.Metrics

	// refreshGroup coalesces concurrent refreshes of the same raw token:
	// the first caller rotates, everyone else receives the same new pair.
	refreshGroup singleflight.Group

	// settled holds recently finished rotations keyed by the consumed raw
	// token. A duplicate landing within ReuseInterval of the rotation gets
	// the cached result instead of tripping the reuse detector.
	settledMu sync.Mutex
	settled   map[string]settledRotation

	now func() time.Time
}

// New builds a Service. All dependencies are required except audit and
// metrics, which degrade to no-ops when nil.
func New(
	cfg Config,
	codec *token.Codec,
	users store.UserStore,
	families store.FamilyStore,
	lockouts store.LockoutStore,
	hasher *password.Hasher,
	log *logrus.Logger,
	auditor *audit.Dispatcher,
	m *metrics.Metrics,
) *Service {
	cfg.applyDefaults()
	if log == nil {
		log = logrus.New()
	}

	return &Service{
		cfg:      cfg,
		codec:    codec,
		users:    users,
		families: families,
		lockouts: lockouts,
		hasher:   hasher,
		log:      log,
		audit:    auditor,
		metrics:  m,
		settled:  make(map[string]settledRotation),
		now:      time.Now,
	}
}

// Register creates an account and returns the stored user.
func (s *Service) Register(ctx context.Context, email, pass string) (*models.User, error) {
	hash, err := s.hasher.Hash(pass)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return nil, ErrWeakPassword
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and opens a new token family. Failed
// attempts are counted per email inside a fixed window; reaching the
// limit locks the account until the window lapses.
func (s *Service) Login(ctx context.Context, email, pass string) (*models.User, token.Pair, error) {
	lockKey := "login:" + email

	sctx, cancel := s.storeCtx(ctx)
	count, err := s.lockouts.FailedLoginCount(sctx, lockKey)
	cancel()
	if err != nil {
		return nil, token.Pair{}, fmt.Errorf("check lockout: %w", err)
	}
	if count >= s.cfg.LockoutMaxAttempts {
		s.countLogin(metrics.ResultRejected)
		if s.metrics != nil {
			s.metrics.Lockouts.Inc()
		}
		return nil, token.Pair{}, ErrAccountLocked
	}

	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, token.Pair{}, s.failLogin(ctx, lockKey, email, "unknown email")
		}
		return nil, token.Pair{}, fmt.Errorf("load user: %w", err)
	}

	ok, err := s.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		return nil, token.Pair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, token.Pair{}, s.failLogin(ctx, lockKey, email, "wrong password")
	}

	if !user.Active {
		s.countLogin(metrics.ResultRejected)
		return nil, token.Pair{}, ErrInvalidCredentials
	}

	sctx, cancel = s.storeCtx(ctx)
	_ = s.lockouts.ClearFailedLogins(sctx, lockKey)
	cancel()

	pair, err := s.openFamily(ctx, user)
	if err != nil {
		return nil, token.Pair{}, err
	}

	s.countLogin(metrics.ResultOK)
	return user, pair, nil
}

func (s *Service) failLogin(ctx context.Context, lockKey, email, reason string) error {
	sctx, cancel := s.storeCtx(ctx)
	count, err := s.lockouts.RecordFailedLogin(sctx, lockKey, s.cfg.LockoutWindow)
	cancel()
	if err != nil {
		s.log.WithError(err).Warn("failed to record login failure")
	}

	s.countLogin(metrics.ResultRejected)
	s.audit.Emit(audit.Event{Kind: audit.EventLoginFailure, Email: email, Detail: reason})

	if err == nil && count == s.cfg.LockoutMaxAttempts {
		s.audit.Emit(audit.Event{Kind: audit.EventLockout, Email: email})
	}

	return ErrInvalidCredentials
}

// openFamily mints a pair in a fresh family and registers it as the
// family head.
func (s *Service) openFamily(ctx context.Context, user *models.User) (token.Pair, error) {
	pair, err := s.codec.Issue(user, "")
	if err != nil {
		return token.Pair{}, fmt.Errorf("issue tokens: %w", err)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.families.StoreFamilyToken(sctx, pair.FamilyID, pair.TokenID, s.codec.RefreshTTL()); err != nil {
		return token.Pair{}, fmt.Errorf("register token family: %w", err)
	}

	return pair, nil
}

// refreshResult is what every coalesced caller receives.
type refreshResult struct {
	pair token.Pair
	user *models.User
}

// settledRotation caches a finished rotation for the reuse interval.
type settledRotation struct {
	res       refreshResult
	expiresAt time.Time
}

// Refresh rotates a refresh token and returns the new pair together
// with the resolved user. Calls presenting the same raw token within
// the reuse interval share a single rotation and all receive the
// identical result, so a burst of parallel API calls from one client
// does not trip the reuse detector. Only presentations after the
// interval count as reuse.
func (s *Service) Refresh(ctx context.Context, rawToken string) (token.Pair, *models.User, error) {
	if rawToken == "" {
		return token.Pair{}, nil, ErrNoRefreshToken
	}

	if res, ok := s.settledResult(rawToken); ok {
		if s.metrics != nil {
			s.metrics.Coalesced.Inc()
		}
		return res.pair, res.user, nil
	}

	result, err, shared := s.refreshGroup.Do(rawToken, func() (any, error) {
		// The in-flight entry is gone the moment the first rotation
		// settles, so a duplicate whose Do call lands just after would
		// re-run the rotation against its own blacklisted token. The
		// settled cache is re-checked here, under the group, to close
		// that race.
		if res, ok := s.settledResult(rawToken); ok {
			if s.metrics != nil {
				s.metrics.Coalesced.Inc()
			}
			return res, nil
		}

		// The rotation runs on its own deadline, detached from the first
		// caller's context. If that caller disconnects mid-flight the
		// shared result must still complete for the others.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
		defer cancel()
		res, err := s.rotate(rctx, rawToken)
		if err == nil {
			s.rememberRotation(rawToken, res)
		}
		return res, err
	})
	if shared && s.metrics != nil {
		s.metrics.Coalesced.Inc()
	}
	if err != nil {
		return token.Pair{}, nil, err
	}

	res := result.(refreshResult)
	return res.pair, res.user, nil
}

// settledResult returns the cached rotation for a raw token if it is
// still inside the reuse interval.
func (s *Service) settledResult(rawToken string) (refreshResult, bool) {
	s.settledMu.Lock()
	defer s.settledMu.Unlock()

	entry, ok := s.settled[rawToken]
	if !ok {
		return refreshResult{}, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.settled, rawToken)
		return refreshResult{}, false
	}
	return entry.res, true
}

// rememberRotation records a finished rotation under the consumed raw
// token. Expired entries are purged on the way in so the map stays
// bounded by the rotation rate times the interval.
func (s *Service) rememberRotation(rawToken string, res refreshResult) {
	if s.cfg.ReuseInterval < 0 {
		return
	}

	now := s.now()
	s.settledMu.Lock()
	defer s.settledMu.Unlock()

	for key, entry := range s.settled {
		if now.After(entry.expiresAt) {
			delete(s.settled, key)
		}
	}
	s.settled[rawToken] = settledRotation{res: res, expiresAt: now.Add(s.cfg.ReuseInterval)}
}

// rotate performs one rotation step. Check order matters: reuse
// detection must run before the family-head comparison, otherwise a
// replayed old token would be indistinguishable from garbage.
func (s *Service) rotate(ctx context.Context, rawToken string) (refreshResult, error) {
	claims, err := s.codec.ParseRefresh(rawToken)
	if err != nil {
		s.countRefresh(metrics.ResultRejected)
		return refreshResult{}, ErrInvalidOrExpiredToken
	}

	blacklisted, err := s.families.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		s.countRefresh(metrics.ResultError)
		return refreshResult{}, fmt.Errorf("check blacklist: %w", err)
	}
	if blacklisted {
		return refreshResult{}, s.breach(ctx, claims)
	}

	userID, err := claims.UserID()
	if err != nil {
		s.countRefresh(metrics.ResultRejected)
		return refreshResult{}, ErrInvalidOrExpiredToken
	}

	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.countRefresh(metrics.ResultRejected)
			return refreshResult{}, ErrUserNotFound
		}
		s.countRefresh(metrics.ResultError)
		return refreshResult{}, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		s.countRefresh(metrics.ResultRejected)
		return refreshResult{}, ErrUserNotFound
	}

	current, err := s.families.FamilyHasToken(ctx, claims.FamilyID, claims.ID)
	if err != nil {
		s.countRefresh(metrics.ResultError)
		return refreshResult{}, fmt.Errorf("check family: %w", err)
	}
	if !current {
		// The family no longer exists or has moved past this token
		// without blacklisting it (e.g. it was revoked wholesale).
		s.countRefresh(metrics.ResultRejected)
		return refreshResult{}, ErrInvalidOrExpiredToken
	}

	// The token is the family head but a version bump (password change,
	// "log out everywhere") orphaned it. Drop the family as well so the
	// stale head cannot linger until its TTL.
	if claims.TokenVersion != user.TokenVersion {
		if err := s.families.RemoveFamily(ctx, claims.FamilyID); err != nil {
			s.log.WithError(err).WithField("family_id", claims.FamilyID).
				Warn("failed to remove stale token family")
		}
		s.countRefresh(metrics.ResultInvalidated)
		return refreshResult{}, ErrRefreshTokenInvalidated
	}

	// Consume the old token before publishing the new head. If we crash
	// in between, the client retries and hits the blacklist, which is a
	// false breach but never a silent replay window.
	if err := s.families.BlacklistToken(ctx, claims.ID, s.codec.RefreshTTL()+blacklistGrace); err != nil {
		s.countRefresh(metrics.ResultError)
		return refreshResult{}, fmt.Errorf("blacklist consumed token: %w", err)
	}

	pair, err := s.codec.Issue(user, claims.FamilyID)
	if err != nil {
		s.countRefresh(metrics.ResultError)
		return refreshResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	if err := s.families.StoreFamilyToken(ctx, pair.FamilyID, pair.TokenID, s.codec.RefreshTTL()); err != nil {
		s.countRefresh(metrics.ResultError)
		return refreshResult{}, fmt.Errorf("advance token family: %w", err)
	}

	s.countRefresh(metrics.ResultOK)
	return refreshResult{pair: pair, user: user}, nil
}

// breach handles reuse of a consumed token: revoke the whole family and
// report it. Every legitimate session in that family dies with it.
func (s *Service) breach(ctx context.Context, claims *token.RefreshClaims) error {
	if err := s.families.RemoveFamily(ctx, claims.FamilyID); err != nil {
		s.log.WithError(err).WithField("family_id", claims.FamilyID).
			Error("failed to revoke breached token family")
	}

	s.log.WithFields(logrus.Fields{
		"family_id": claims.FamilyID,
		"user_id":   claims.Subject,
	}).Warn("refresh token reuse detected, family revoked")

	s.audit.Emit(audit.Event{
		Kind:     audit.EventFamilyBreach,
		UserID:   claims.Subject,
		FamilyID: claims.FamilyID,
	})

	if s.metrics != nil {
		s.metrics.Breaches.Inc()
	}
	s.countRefresh(metrics.ResultBreach)

	return ErrTokenFamilyBreach
}

// Authenticate verifies an access token and resolves its user. Tokens
// minted before the current token version are treated as invalidated.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.codec.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		return nil, ErrUserNotFound
	}

	if claims.TokenVersion != user.TokenVersion {
		return nil, ErrRefreshTokenInvalidated
	}

	return user, nil
}

// Logout revokes the refresh token's family. Idempotent: a missing,
// malformed or already-revoked token is not an error, the session is
// gone either way. The token is not blacklisted, removing the family
// already makes it unusable and a later replay should read as a plain
// invalid token rather than a breach.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	claims, err := s.codec.ParseRefresh(rawToken)
	if err != nil {
		return nil
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.families.RemoveFamily(sctx, claims.FamilyID); err != nil {
		return fmt.Errorf("remove token family: %w", err)
	}

	s.audit.Emit(audit.Event{
		Kind:     audit.EventFamilyRevoked,
		UserID:   claims.Subject,
		FamilyID: claims.FamilyID,
	})

	return nil
}

// RevokeAllSessions bumps the account's token version, orphaning every
// outstanding access and refresh token at once.
func (s *Service) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	version, err := s.users.BumpTokenVersion(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("bump token version: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":       userID,
		"token_version": version,
	}).Info("all sessions revoked")

	s.audit.Emit(audit.Event{
		Kind:   audit.EventSessionsRevoked,
		UserID: userID.String(),
	})

	return nil
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

func (s *Service) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.Logins.WithLabelValues(result).Inc()
	}
}

func (s *Service) countRefresh(result string) {
	if s.metrics != nil {
		s.metrics.Refreshes.WithLabelValues(result).Inc()
	}
}
