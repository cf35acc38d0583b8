package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-grading/core"
)

const sessionKey = "session"

// sessionMiddleware builds the core.Session of a request from its bearer token and request ID.
// The token is not verified here: it is forwarded to the gradebook, which owns authentication.
func sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var token string
		if auth := ctx.Request().Header.Get(echo.HeaderAuthorization); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			token = strings.TrimSpace(auth[7:])
		}
		ctx.Set(sessionKey, core.Session{
			AuthToken: token,
			RequestID: ctx.Response().Header().Get(echo.HeaderXRequestID),
		})
		return next(ctx)
	}
}

func getContextSession(ctx echo.Context) core.Session {
	sess, _ := ctx.Get(sessionKey).(core.Session)
	return sess
}
