// Package auth issues and validates guest session tokens. There are no
// accounts: a token simply binds a freshly minted member id to a display
// name so the websocket endpoint can trust both without a database.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// GuestClaims is the validated identity carried by a session token.
type GuestClaims struct {
	MemberID string
	Username string
}

// Service signs and validates HS256 guest tokens.
type Service struct {
	secret []byte
	expiry time.Duration
}

// NewService creates a token service. The secret must be non-empty.
func NewService(secret string, expiryHours int) (*Service, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &Service{
		secret: []byte(secret),
		expiry: time.Duration(expiryHours) * time.Hour,
	}, nil
}

// Issue mints a token for a new guest member and returns the token
// together with the member id embedded in it.
func (s *Service) Issue(username string) (token string, memberID string, err error) {
	memberID = uuid.NewString()
	now := time.Now()
	claims := jwt.MapClaims{
		"member_id": memberID,
		"username":  username,
		"iat":       now.Unix(),
		"exp":       now.Add(s.expiry).Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign guest token: %w", err)
	}
	return token, memberID, nil
}

// Validate parses a token and returns the guest identity it carries.
func (s *Service) Validate(tokenStr string) (*GuestClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	memberID, ok := claims["member_id"].(string)
	if !ok || memberID == "" {
		return nil, ErrInvalidToken
	}
	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return nil, ErrInvalidToken
	}
	return &GuestClaims{MemberID: memberID, Username: username}, nil
}
