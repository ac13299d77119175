package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sentinel errors for the two ways a handshake credential can fail.
// The gateway maps both to a single authentication-error event on the
// socket; the distinction only matters for logs.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidToken      = errors.New("invalid or expired token")
)

// Claims is the payload inside every JWT the gateway accepts.
//
// Tokens are issued by the platform's auth service, not by this gateway.
// We embed jwt.RegisteredClaims so expiry and issued-at come for free and
// standard tooling (jwt.io debugger) recognizes the fields.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// Identity is what a verified credential resolves to. Everything the
// gateway does on behalf of a connection is attributed to this identity —
// the client payload is never trusted for "who is sending".
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Verifier validates bearer credentials presented during the WebSocket
// handshake. It holds the shared HMAC secret and nothing else; it never
// touches the database.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks signature, expiry, and signing method, and returns the
// identity bound into the token.
//
// The signing-method check runs before signature verification — a token
// signed with "none" or RSA is rejected immediately. This prevents the
// classic JWT algorithm-confusion attack.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingCredential
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(v.secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// GenerateToken creates a signed JWT for a given user. The gateway itself
// never issues tokens in production — this exists for tests and local
// tooling, signed the same way the auth service signs (HS256, shared
// secret).
func GenerateToken(userID uuid.UUID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pulsefeed",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}
