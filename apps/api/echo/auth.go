package echoapi

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
)

const (
	contextTokenKey = "userToken"
	accessTokenType = "access"
)

var errNotAccessToken = errors.New("token is not an access token")

// Claims represents the authorization claims transmitted via a JWT.
// The token_type & user_id claims follow the ERP's own access tokens, so both are accepted.
type Claims struct {
	jwt.StandardClaims
	TokenType string   `json:"token_type,omitempty"`
	UserID    ClaimID  `json:"user_id,omitempty"`
	Username  string   `json:"username,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// ClaimID is a user ID claim. The ERP issues numeric IDs, the console issues strings.
type ClaimID string

func (id *ClaimID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*id = ""
	case string:
		*id = ClaimID(val)
	case json.Number:
		*id = ClaimID(val.String())
	default:
		return errors.Errorf("user_id must be a string or a number, got %s", data)
	}
	return nil
}

func (c *Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.TokenType != "" && c.TokenType != accessTokenType {
		return errNotAccessToken
	}
	return nil
}

// Operator returns the console user the claims were issued to.
func (c Claims) Operator() core.Operator {
	id := string(c.UserID)
	if id == "" {
		id = c.Subject
	}
	return core.Operator{
		ID:       id,
		Username: c.Username,
		Email:    c.Email,
		Roles:    c.Roles,
	}
}

// NewClaims returns access token claims for `op`, valid for `ttl`.
func NewClaims(conf *core.Config, op core.Operator, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   op.ID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		TokenType: accessTokenType,
		UserID:    ClaimID(op.ID),
		Username:  op.Username,
		Email:     op.Email,
		Roles:     op.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(secretKey string, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)

	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func newJWTConfig(secretKey string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextOperator(ctx echo.Context) (core.Operator, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Operator{}, err
	}
	return claims.Operator(), nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	op, err := getContextOperator(ctx)
	if err != nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	return op.HasAnyRole(roles...)
}
