package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SGateway/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Identity is the verified principal bound to a connection after the
// handshake. Immutable for the connection's lifetime.
type Identity struct {
	UserID      string
	DisplayName string
}

// Verifier validates an opaque credential. Called exactly once per
// connection attempt; a failure is fatal to the transport.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// Options controls signing and TTL.
type Options struct {
	Secret []byte        // HMAC key (from ENV/KMS in production)
	Alg    string        // HS256/HS384/HS512 (default HS256)
	TTL    time.Duration // token validity (default 2h)
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 2 * time.Hour}
}

// JWTVerifier verifies HMAC-signed tokens. The `sub` claim becomes the
// user id, the `name` claim the display name (falls back to the id).
type JWTVerifier struct {
	opts Options
}

func NewJWTVerifier(opts Options) *JWTVerifier {
	return &JWTVerifier{opts: opts}
}

func (v *JWTVerifier) Verify(_ context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, errs.ErrAuth.WrapMsg("empty credential")
	}
	if _, err := signingMethod(v.opts.Alg); err != nil {
		return Identity{}, err
	}
	parsed, err := jwtlib.Parse(credential, func(t *jwtlib.Token) (interface{}, error) {
		// HMAC family only
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return v.opts.Secret, nil
	})
	if err != nil {
		return Identity{}, errs.ErrAuth.WrapMsg("parse token", "err", err)
	}
	if !parsed.Valid {
		return Identity{}, errs.ErrAuth.WrapMsg("invalid token")
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Identity{}, errs.ErrAuth.WrapMsg("claims type mismatch")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, errs.ErrAuth.WrapMsg("missing sub claim")
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = sub
	}
	return Identity{UserID: sub, DisplayName: name}, nil
}

// Generate mints a token for userID. Used by tests and ops tooling.
func Generate(opts Options, userID, displayName string) (string, error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", err
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(opts.TTL).Unix(),
	}
	if displayName != "" {
		claims["name"] = displayName
	}
	tok := jwtlib.NewWithClaims(method, claims)
	return tok.SignedString(opts.Secret)
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
