package directus

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jk100/archiv-admin/internal/model"
)

// defaultTTL is assumed when neither the response nor the token carries an expiry.
const defaultTTL = 15 * time.Minute

// userFields is the projection requested for the current user.
var userFields = []string{"id", "email", "first_name", "last_name", "role.id", "role.name"}

type tokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expires      int64  `json:"expires"`
}

// Login exchanges email and password for a credential record.
func (c *Client) Login(ctx context.Context, email, password string) (model.Credentials, error) {
	body := map[string]string{"email": email, "password": password, "mode": "json"}
	var td tokenData
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, "", &td); err != nil {
		return model.Credentials{}, err
	}
	return c.credentials(td), nil
}

// Refresh exchanges a refresh token for a new credential record.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.Credentials, error) {
	body := map[string]string{"refresh_token": refreshToken, "mode": "json"}
	var td tokenData
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, body, "", &td); err != nil {
		return model.Credentials{}, err
	}
	return c.credentials(td), nil
}

// Logout invalidates the refresh token on the backend.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken, "mode": "json"}
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, body, "", nil)
}

// CurrentUser reads the profile of the user owning accessToken.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*model.User, error) {
	q := url.Values{}
	q.Set("fields", joinFields(userFields))
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/users/me", q, nil, accessToken, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// credentials turns a token response into a record with an absolute expiry. When the backend
// omits the TTL the access token's exp claim is used.
func (c *Client) credentials(td tokenData) model.Credentials {
	now := c.now()
	cr := model.Credentials{
		AccessToken:  td.AccessToken,
		RefreshToken: td.RefreshToken,
		Expires:      td.Expires,
	}
	switch {
	case td.Expires > 0:
		cr.ExpiresAt = now.UnixMilli() + td.Expires
	default:
		exp := now.Add(defaultTTL)
		var claims jwt.RegisteredClaims
		if _, _, err := jwt.NewParser().ParseUnverified(td.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}
		cr.ExpiresAt = exp.UnixMilli()
		cr.Expires = exp.Sub(now).Milliseconds()
	}
	return cr
}
