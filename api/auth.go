package api

import (
	"errors"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const defaultJWKSCacheTTL = 15 * time.Minute

var (
	errInvalidClaims  = errors.New("invalid claims")
	errMissingSubject = errors.New("missing sub")
)

// Auth validates incoming JWT tokens. With a shared secret it accepts HS256
// tokens, otherwise RS256 tokens verified against the JWKS.
type Auth struct {
	JWKS     *keyfunc.JWKS
	Secret   []byte
	Audience string
	Issuer   string

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates an Auth verifying RS256 tokens against jwks.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	return &Auth{
		JWKS:        jwks,
		Audience:    audience,
		Issuer:      issuer,
		parser:      jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
		keyCacheTTL: defaultJWKSCacheTTL,
	}
}

// NewSecretAuth creates an Auth verifying HS256 tokens signed with secret.
func NewSecretAuth(secret []byte, audience, issuer string) *Auth {
	if len(secret) == 0 {
		panic("api.NewSecretAuth: secret is empty")
	}
	return &Auth{
		Secret:   secret,
		Audience: audience,
		Issuer:   issuer,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// UserIDFromAuthHeader extracts the user identifier from the Authorization header.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", errMissingAuthorization
	}
	token, err := bearerToken(h)
	if err != nil {
		return "", err
	}
	return a.UserIDFromToken(token)
}

// UserIDFromToken verifies a raw JWT and returns its subject. Tokens issued
// before subjects were introduced carry the user id in an "id" claim.
func (a *Auth) UserIDFromToken(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", errBadAuthorization
	}
	parsed, err := a.parser.Parse(tokenStr, a.key)
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidClaims
	}

	// one minute of clock skew either way
	now := time.Now()
	if !claims.VerifyExpiresAt(now.Add(-time.Minute).Unix(), a.Secret == nil) {
		return "", errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now.Add(time.Minute).Unix(), false) {
		return "", errors.New("token not valid yet")
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return "", errors.New("invalid audience")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return "", errors.New("invalid issuer")
	}

	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id, nil
	}
	return "", errMissingSubject
}

func (a *Auth) key(t *jwt.Token) (any, error) {
	if a.Secret != nil {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.Secret, nil
	}
	return a.keyForToken(t)
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
