// Package auth signs session tokens, hashes passwords and resolves the
// current user for a request.
//
// SESSION FLOW OVERVIEW:
//  1. POST /login checks the password and inserts a row in the sessions table
//  2. The server signs a JWT whose "jti" is the session id and whose "sub" is
//     the user id, and stores it in the HttpOnly "session" cookie
//  3. On later requests the Gate verifies the signature, then looks the
//     session row up. A missing row means the user logged out.
//  4. POST /logout deletes the row, which revokes the token immediately
//
// WHY JWT *AND* A SESSIONS TABLE?
// A bare JWT is stateless: the server cannot take it back before it expires.
// Pairing it with a row gives us real logout while keeping the tamper-proof
// signature check in front of every DB lookup: a forged cookie never reaches
// the database.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"<user id>","jti":"<session id>","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is written to and required in every token.
const Issuer = "taskflow"

var (
	// ErrTokenExpired means the signature was fine but exp has passed.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid covers every other reason a token is rejected.
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// TokenService signs and verifies session tokens with an HMAC secret.
// The same secret must be used for both operations; rotating it logs
// everybody out.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Claims is what a verified token tells us.
type Claims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Issue signs a token for the session. expiresAt should match the session
// row's expiry so the two lapse together.
//
// Signing algorithm: HS256 (HMAC-SHA256). Symmetric, fast, and all we need
// for a single-server deployment.
func (s *TokenService) Issue(userID, sessionID string, expiresAt time.Time) (string, error) {
	if userID == "" || sessionID == "" {
		return "", errors.New("auth: token needs a user id and a session id")
	}

	c := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    Issuer,
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer is "taskflow"
//   - Algorithm is HS256
//
// ALGORITHM CONFUSION ATTACK:
// Without pinning the algorithm, an attacker could send a token with
// "alg":"none" and a lax library might accept it. jwt.WithValidMethods
// prevents this.
func (s *TokenService) Parse(tokenStr string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&rc,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || rc.Subject == "" || rc.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or id", ErrTokenInvalid)
	}

	return &Claims{
		UserID:    rc.Subject,
		SessionID: rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
