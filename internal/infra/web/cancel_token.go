// File: internal/infra/web/cancel_token.go
package web

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// cancelTokenTTL bounds how long a mailed cancellation link stays valid.
const cancelTokenTTL = 72 * time.Hour

var ErrBadCancelToken = errors.New("invalid cancellation token")

// CancelTokens mints and verifies the signed links that let a subscriber
// cancel everything without talking to support.
type CancelTokens struct {
	secret  []byte
	baseURL string
}

func NewCancelTokens(secret, baseURL string) *CancelTokens {
	return &CancelTokens{secret: []byte(secret), baseURL: baseURL}
}

type cancelClaims struct {
	SubscriberID string `json:"sub_id"`
	jwt.RegisteredClaims
}

// Mint returns the full link for the given subscriber.
func (c *CancelTokens) Mint(subscriberID string) (string, error) {
	now := time.Now()
	claims := cancelClaims{
		SubscriberID: subscriberID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cancelTokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/subscriptions/cancel?token=%s", c.baseURL, url.QueryEscape(token)), nil
}

// Verify returns the subscriber id a valid token was minted for.
func (c *CancelTokens) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &cancelClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadCancelToken
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrBadCancelToken
	}
	claims, ok := parsed.Claims.(*cancelClaims)
	if !ok || claims.SubscriberID == "" {
		return "", ErrBadCancelToken
	}
	return claims.SubscriberID, nil
}
