package custodian

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrBadToken signals a callback token that fails signature, expiry or
// claim checks.
var ErrBadToken = errors.New("custodian: bad token")

// Signer mints and checks the HS256 correlation tokens that accompany
// asynchronous custodian requests. The token proves the callback belongs
// to a request this service issued; single-use enforcement happens in the
// database, not here.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
		// Generous lifetime: a release confirmation can arrive days after
		// the request that minted its token.
		ttl: 30 * 24 * time.Hour,
		now: time.Now,
	}
}

func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Sign issues a token carrying the stored token row id, the dispute it
// belongs to and the request purpose.
func (s *Signer) Sign(tokenID string, disputeID int64, purpose string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"jti":        tokenID,
		"dispute_id": disputeID,
		"purpose":    purpose,
		"iat":        now.Unix(),
		"exp":        now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("custodian: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a presented callback token and returns its claims.
func (s *Signer) Verify(tokenString string) (tokenID string, disputeID int64, purpose string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", 0, "", ErrBadToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", 0, "", ErrBadToken
	}
	tokenID, ok = claims["jti"].(string)
	if !ok || tokenID == "" {
		return "", 0, "", ErrBadToken
	}
	rawID, ok := claims["dispute_id"].(float64)
	if !ok {
		return "", 0, "", ErrBadToken
	}
	purpose, ok = claims["purpose"].(string)
	if !ok || purpose == "" {
		return "", 0, "", ErrBadToken
	}
	return tokenID, int64(rawID), purpose, nil
}
