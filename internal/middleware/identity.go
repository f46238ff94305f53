package middleware

// identity.go turns the claims stored by JWTAuth into the actor the
// booking core works with.

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/model"
)

// ErrNoActor is returned by ActorFrom on routes without a verified token.
var ErrNoActor = errors.New("no authenticated user in context")

// ActorFrom returns the authenticated caller of the request.
func ActorFrom(c echo.Context) (model.Actor, error) {
	uid, ok := c.Get(ctxUserID).(uint64)
	if !ok || uid == 0 {
		return model.Actor{}, ErrNoActor
	}
	role, _ := c.Get(ctxRole).(string)
	return model.Actor{UserID: uid, Role: role}, nil
}

// userKey identifies the caller for rate limiting. It returns "anon" on
// public routes.
func userKey(c echo.Context) string {
	if uid, ok := c.Get(ctxUserID).(uint64); ok && uid != 0 {
		return strconv.FormatUint(uid, 10)
	}
	return "anon"
}

// parseSubject accepts the numeric and string encodings of the sub claim.
func parseSubject(v any) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil || n == 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
