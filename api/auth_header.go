package api

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

const bearerPrefix = "Bearer "

// bearerToken returns the JWT carried by an Authorization header value.
func bearerToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errMissingAuthorization
	}
	token, ok := strings.CutPrefix(raw, bearerPrefix)
	if !ok || token == "" {
		return "", errBadAuthorization
	}
	if strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}

// authHeader returns the Authorization header, falling back to a token query
// parameter for EventSource and WebSocket clients that cannot set headers.
func authHeader(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		return h
	}
	if token := c.QueryParam("token"); token != "" {
		return bearerPrefix + token
	}
	return ""
}

func authenticate(c echo.Context, auth Authenticator) (string, error) {
	return auth.UserIDFromAuthHeader(authHeader(c))
}
