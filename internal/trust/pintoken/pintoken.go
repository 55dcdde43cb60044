// Package pintoken issues and validates the signed token a kiosk carries
// after a successful PIN entry. The token is the only cross-request trust
// state and is honoured until it expires.
package pintoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
)

const issuer = "kiosk"

// Claims scope a PIN verification to one branch and one kiosk.
type Claims struct {
	BranchID string `json:"branch"`
	DeviceID string `json:"device"`
	jwt.RegisteredClaims
}

// Token is the issued value and its expiry.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	signingKey []byte
}

func NewService(signingKey string) *Service {
	return &Service{signingKey: []byte(signingKey)}
}

func (s *Service) Issue(branchID id.BranchID, deviceID string, now time.Time, ttl time.Duration) (Token, error) {
	expiresAt := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		BranchID: branchID.String(),
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return Token{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign pin token")
	}
	return Token{Token: signed, ExpiresAt: expiresAt.Truncate(time.Second)}, nil
}

// Validate returns a pin_required error when the token is missing, invalid,
// expired, or scoped to another branch or device.
func (s *Service) Validate(tokenString string, branchID id.BranchID, deviceID string, now time.Time) error {
	if tokenString == "" {
		return dErrors.New(dErrors.CodePinRequired, "pin required")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dErrors.New(dErrors.CodePinRequired, "pin token has expired")
		}
		return dErrors.New(dErrors.CodePinRequired, "invalid pin token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return dErrors.New(dErrors.CodePinRequired, "invalid pin token")
	}
	if claims.BranchID != branchID.String() || claims.DeviceID != deviceID {
		return dErrors.New(dErrors.CodePinRequired, "pin token belongs to another kiosk")
	}
	return nil
}
