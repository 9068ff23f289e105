package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/literati-app/auth-service/internal/models"
)

var (
	// ErrTokenExpired reports a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid reports a malformed token or a bad signature.
	ErrTokenInvalid = errors.New("token invalid")
)

const minSecretLen = 32

// Config holds the signing material and lifetimes for both token kinds.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// AccessClaims is the payload of an access token. The user ID travels in
// the registered Subject claim.
type AccessClaims struct {
	Email        string `json:"email"`
	TokenVersion int    `json:"tv"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. FamilyID ties the token
// to its rotation lineage; the registered ID claim (jti) identifies this
// particular member of the family.
type RefreshClaims struct {
	FamilyID     string `json:"fid"`
	TokenVersion int    `json:"tv"`
	jwt.RegisteredClaims
}

// Pair bundles a freshly minted access/refresh credential pair together
// with the identifiers the family store needs to register it.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	FamilyID         string
	TokenID          string
	RefreshExpiresAt time.Time
}

// Codec signs and verifies token pairs. Safe for concurrent use.
type Codec struct {
	cfg Config
}

// NewCodec validates the signing configuration. Both secrets must be at
// least 32 bytes and must differ from each other.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) < minSecretLen {
		return nil, fmt.Errorf("access secret must be at least %d bytes", minSecretLen)
	}
	if len(cfg.RefreshSecret) < minSecretLen {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", minSecretLen)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}

	return &Codec{cfg: cfg}, nil
}

// Issue mints an access/refresh pair for the user. An empty familyID
// starts a new token family (login); a non-empty one continues an existing
// family (rotation). The token version is embedded in both tokens so that
// a version bump invalidates access and refresh alike.
func (c *Codec) Issue(user *models.User, familyID string) (Pair, error) {
	now := time.Now()

	if familyID == "" {
		familyID = uuid.NewString()
	}
	tokenID := uuid.NewString()
	refreshExpiry := now.Add(c.cfg.RefreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Email:        user.Email,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.cfg.Issuer,
			ID:        uuid.NewString(),
		},
	})
	signedAccess, err := access.SignedString(c.cfg.AccessSecret)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		FamilyID:     familyID,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.cfg.Issuer,
			ID:        tokenID,
		},
	})
	signedRefresh, err := refresh.SignedString(c.cfg.RefreshSecret)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return Pair{
		AccessToken:      signedAccess,
		RefreshToken:     signedRefresh,
		FamilyID:         familyID,
		TokenID:          tokenID,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// ParseAccess verifies an access token and returns its claims.
func (c *Codec) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenStr, claims, c.cfg.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (c *Codec) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenStr, claims, c.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.FamilyID == "" || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// RefreshTTL exposes the configured refresh lifetime so callers can size
// blacklist entries to outlive the tokens they cover.
func (c *Codec) RefreshTTL() time.Duration {
	return c.cfg.RefreshTTL
}

func (c *Codec) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

// Subject helpers: both claim kinds carry the user ID in Subject.

// UserID parses the Subject claim of an access token.
func (a *AccessClaims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(a.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}
	return id, nil
}

// UserID parses the Subject claim of a refresh token.
func (r *RefreshClaims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(r.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}
	return id, nil
}
