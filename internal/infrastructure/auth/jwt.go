package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when no TTL is configured
const DefaultTokenTTL = 24 * time.Hour

const issuer = "expense-approvals"

var errMissingSecret = errors.New("jwt secret must not be empty")

// sessionClaims is the JWT payload
type sessionClaims struct {
	CompanyID string   `json:"company"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTIssuer implements port.TokenIssuer with HS256-signed tokens
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer creates a token issuer. A non-positive ttl selects DefaultTokenTTL.
func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a new session token for the user
func (j *JWTIssuer) Issue(userID, companyID string, roles []entity.Role) (string, *port.TokenClaims, error) {
	now := j.now()
	claims := &port.TokenClaims{
		TokenID:   uuid.NewString(),
		UserID:    userID,
		CompanyID: companyID,
		Roles:     append([]entity.Role(nil), roles...),
		// JWT NumericDate has second precision
		ExpiresAt: now.Add(j.ttl).Truncate(time.Second),
	}

	roleNames := make([]string, 0, len(roles))
	for _, r := range roles {
		roleNames = append(roleNames, string(r))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		CompanyID: companyID,
		Roles:     roleNames,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID,
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature and expiry and returns the session claims
func (j *JWTIssuer) Parse(tokenString string) (*port.TokenClaims, error) {
	var sc sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &sc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %v: %w", err, entity.ErrUnauthenticated)
	}
	if sc.ID == "" || sc.Subject == "" || sc.CompanyID == "" {
		return nil, fmt.Errorf("incomplete token claims: %w", entity.ErrUnauthenticated)
	}

	roles := make([]entity.Role, 0, len(sc.Roles))
	for _, r := range sc.Roles {
		roles = append(roles, entity.Role(r))
	}

	return &port.TokenClaims{
		TokenID:   sc.ID,
		UserID:    sc.Subject,
		CompanyID: sc.CompanyID,
		Roles:     roles,
		ExpiresAt: sc.ExpiresAt.Time,
	}, nil
}

// Verify interface compliance
var _ port.TokenIssuer = (*JWTIssuer)(nil)
