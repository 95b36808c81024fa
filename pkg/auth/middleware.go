package auth

import (
	"encoding/json"
	"net/http"

	"fleetwatch/pkg/log"
	"fleetwatch/pkg/models"
	"fleetwatch/pkg/operation"

	"github.com/labstack/echo/v4"
)

// EchoDenyFunc writes the denial response for an echo request.
type EchoDenyFunc func(c echo.Context, operation string) error

// HTTPDenyFunc writes the denial response for a net/http request.
type HTTPDenyFunc func(w http.ResponseWriter, r *http.Request, operation string)

// DenyJSON answers 401 with a generic JSON error body.
func DenyJSON(c echo.Context, _ string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: ErrUnauthorized.Error()})
}

// DenyHTTP is DenyJSON for net/http handlers.
func DenyHTTP(w http.ResponseWriter, _ *http.Request, _ string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: ErrUnauthorized.Error()})
}

// Decorator returns an operation decorator enforcing authorizer before the
// wrapped handler runs. A nil deny uses DenyJSON.
func Decorator(authorizer Authorizer, deny EchoDenyFunc) operation.Decorator {
	if deny == nil {
		deny = DenyJSON
	}
	return func(op string, next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := Check(authorizer, op, c.Request().Header.Get(HeaderName)); err != nil {
				log.Debug().
					Str("operation", op).
					Str("remote", c.RealIP()).
					Msg("Request denied")
				return deny(c, op)
			}
			return next(c)
		}
	}
}

// HTTPMiddleware guards a net/http handler as the named operation. A nil
// deny uses DenyHTTP.
func HTTPMiddleware(authorizer Authorizer, op string, deny HTTPDenyFunc) func(http.Handler) http.Handler {
	if deny == nil {
		deny = DenyHTTP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Check(authorizer, op, r.Header.Get(HeaderName)); err != nil {
				deny(w, r, op)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
