package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kittipos-dev/user-auth-api/internal/auth"
)

const (
	sessionCookieName = "token"
	localsUserIDKey   = "userID"
	localsRequestID   = "requestID"
)

// AuthMiddleware verifies the session token carried in the "token" cookie or
// a bearer Authorization header, interchangeably. Rejection causes (missing,
// expired, invalid) are logged individually but all collapse to 401; only an
// expired token gets a distinct user-facing message.
func AuthMiddleware(issuer auth.TokenIssuer, logger *zerolog.Logger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := strings.TrimSpace(ctx.Cookies(sessionCookieName))
		if tokenStr == "" {
			tokenStr = bearerToken(ctx.Get(fiber.HeaderAuthorization))
		}

		userID, err := issuer.Verify(tokenStr)
		if err != nil {
			logger.Debug().
				Err(err).
				Str("path", ctx.Path()).
				Msg("session token rejected")

			message := "Unauthorized"
			if errors.Is(err, auth.ErrTokenExpired) {
				message = "Token has expired. Please login again"
			}

			return respondError(ctx, fiber.StatusUnauthorized, message)
		}

		ctx.Locals(localsUserIDKey, userID)
		return ctx.Next()
	}
}

// RequestID tags every request with an X-Request-ID, generating one when the
// client did not send it.
func RequestID() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id := ctx.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		ctx.Set(fiber.HeaderXRequestID, id)
		ctx.Locals(localsRequestID, id)
		return ctx.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}

	return header
}

func currentUserID(ctx *fiber.Ctx) (string, bool) {
	id, ok := ctx.Locals(localsUserIDKey).(string)
	return id, ok && id != ""
}
