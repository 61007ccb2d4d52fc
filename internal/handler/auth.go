package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kittipos-dev/user-auth-api/internal/auth"
	"github.com/kittipos-dev/user-auth-api/internal/usecase"
	"github.com/kittipos-dev/user-auth-api/internal/validation"
)

// AuthHandler exposes the authentication flows over HTTP.
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	otpUsecase  usecase.OTPUsecase
	issuer      auth.TokenIssuer
	validator   *validation.Validator
	logger      *zerolog.Logger
	production  bool
	sessionTTL  time.Duration
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(
	authUsecase usecase.AuthUsecase,
	otpUsecase usecase.OTPUsecase,
	issuer auth.TokenIssuer,
	validator *validation.Validator,
	logger *zerolog.Logger,
	production bool,
	sessionTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		otpUsecase:  otpUsecase,
		issuer:      issuer,
		validator:   validator,
		logger:      logger,
		production:  production,
		sessionTTL:  sessionTTL,
	}
}

// RegisterRoutes mounts the auth routes. send-verify-otp, verify-account,
// is-auth and reset-password require a session; reset-otp stays reachable
// while logged out so a locked-out user can start a reset.
func (h *AuthHandler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1/auth")
	authRequired := AuthMiddleware(h.issuer, h.logger)

	api.Post("/register", h.Register)
	api.Post("/login", h.Login)
	api.Get("/logout", h.Logout)
	api.Post("/send-verify-otp", authRequired, h.SendVerifyOTP)
	api.Post("/verify-account", authRequired, h.VerifyAccount)
	api.Post("/is-auth", authRequired, h.IsAuthenticated)
	api.Post("/reset-password", authRequired, h.ResetPassword)
	api.Post("/reset-otp", h.SendResetOTP)
}

func (h *AuthHandler) Register(ctx *fiber.Ctx) error {
	var req registerRequest
	if err := ctx.BodyParser(&req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	if err := h.validator.Struct(req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, err.Error())
	}

	user, token, err := h.authUsecase.Register(ctx.Context(), usecase.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUserAlreadyExists):
			return respondError(ctx, fiber.StatusConflict, fmt.Sprintf("%s already exists", req.Name))
		default:
			h.logger.Error().Err(err).Msg("failed to register user")
			return respondError(ctx, fiber.StatusInternalServerError, "Something went wrong")
		}
	}

	ctx.Cookie(h.sessionCookie(token))

	return respondSuccess(ctx, fiber.StatusCreated, "New user created", newUserResponse(user))
}

func (h *AuthHandler) Login(ctx *fiber.Ctx) error {
	var req loginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, "Please provide email and password")
	}

	if err := h.validator.Struct(req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, err.Error())
	}

	user, token, err := h.authUsecase.Login(ctx.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUserNotFound):
			return respondError(ctx, fiber.StatusNotFound, "User does not exist")
		case errors.Is(err, usecase.ErrInvalidPassword):
			return respondError(ctx, fiber.StatusUnauthorized, "Invalid password")
		default:
			h.logger.Error().Err(err).Msg("failed to log user in")
			return respondError(ctx, fiber.StatusInternalServerError, "Something went wrong")
		}
	}

	ctx.Cookie(h.sessionCookie(token))

	return respondSuccess(ctx, fiber.StatusOK, "User logged in successfully", newUserResponse(user))
}

func (h *AuthHandler) Logout(ctx *fiber.Ctx) error {
	ctx.Cookie(h.expiredSessionCookie())

	return respondSuccess(ctx, fiber.StatusOK, "User logged out", nil)
}

func (h *AuthHandler) SendVerifyOTP(ctx *fiber.Ctx) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return respondError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	if err := h.otpUsecase.SendVerificationOTP(ctx.Context(), userID); err != nil {
		switch {
		case errors.Is(err, usecase.ErrUserNotFound):
			return respondError(ctx, fiber.StatusNotFound, "User not found")
		case errors.Is(err, usecase.ErrAlreadyVerified):
			return respondError(ctx, fiber.StatusBadRequest, "Account already verified")
		default:
			h.logger.Error().Err(err).Msg("failed to send verification OTP")
			return respondError(ctx, fiber.StatusInternalServerError, "Something went wrong")
		}
	}

	return respondSuccess(ctx, fiber.StatusOK, "Verification OTP sent on Email", nil)
}

func (h *AuthHandler) VerifyAccount(ctx *fiber.Ctx) error {
	userID, ok := currentUserID(ctx)
	if !ok {
		return respondError(ctx, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req verifyAccountRequest
	if err := ctx.BodyParser(&req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, "Missing details")
	}

	if err := h.validator.Struct(req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, err.Error())
	}

	if err := h.otpUsecase.VerifyAccount(ctx.Context(), userID, req.OTP); err != nil {
		switch {
		case errors.Is(err, usecase.ErrUserNotFound):
			return respondError(ctx, fiber.StatusNotFound, "User not found")
		case errors.Is(err, usecase.ErrInvalidOTP):
			return respondError(ctx, fiber.StatusBadRequest, "Invalid OTP")
		case errors.Is(err, usecase.ErrOTPExpired):
			return respondError(ctx, fiber.StatusBadRequest, "OTP expired")
		default:
			h.logger.Error().Err(err).Msg("failed to verify account")
			return respondError(ctx, fiber.StatusInternalServerError, "Something went wrong")
		}
	}

	return respondSuccess(ctx, fiber.StatusOK, "Email verified successfully", nil)
}

func (h *AuthHandler) IsAuthenticated(ctx *fiber.Ctx) error {
	return respondSuccess(ctx, fiber.StatusOK, "", nil)
}

func (h *AuthHandler) SendResetOTP(ctx *fiber.Ctx) error {
	var req sendResetOTPRequest
	if err := ctx.BodyParser(&req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, "Email is required")
	}

	if err := h.validator.Struct(req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, err.Error())
	}

	if err := h.otpUsecase.SendResetOTP(ctx.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, usecase.ErrUserNotFound):
			return respondError(ctx, fiber.StatusNotFound, "User not found")
		default:
			h.logger.Error().Err(err).Msg("failed to send reset OTP")
			return respondError(ctx, fiber.StatusInternalServerError, "Something went wrong")
		}
	}

	return respondSuccess(ctx, fiber.StatusOK, "OTP sent to your email", nil)
}

func (h *AuthHandler) ResetPassword(ctx *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := ctx.BodyParser(&req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, "Please provide the details")
	}

	if err := h.validator.Struct(req); err != nil {
		return respondError(ctx, fiber.StatusBadRequest, err.Error())
	}

	if err := h.otpUsecase.ResetPassword(ctx.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, usecase.ErrUserNotFound):
			return respondError(ctx, fiber.StatusNotFound, "User not found")
		case errors.Is(err, usecase.ErrInvalidOTP):
			return respondError(ctx, fiber.StatusBadRequest, "Invalid OTP")
		case errors.Is(err, usecase.ErrOTPExpired):
			return respondError(ctx, fiber.StatusBadRequest, "OTP expired")
		default:
			h.logger.Error().Err(err).Msg("failed to reset password")
			return respondError(ctx, fiber.StatusInternalServerError, "Something went wrong")
		}
	}

	return respondSuccess(ctx, fiber.StatusOK, "Password has been reset successfully", nil)
}

func (h *AuthHandler) sessionCookie(token string) *fiber.Cookie {
	cookie := h.baseSessionCookie()
	cookie.Value = token
	cookie.Expires = time.Now().Add(h.sessionTTL)
	cookie.MaxAge = int(h.sessionTTL.Seconds())
	return cookie
}

func (h *AuthHandler) expiredSessionCookie() *fiber.Cookie {
	cookie := h.baseSessionCookie()
	cookie.Expires = time.Now().Add(-time.Hour)
	cookie.MaxAge = -1
	return cookie
}

func (h *AuthHandler) baseSessionCookie() *fiber.Cookie {
	sameSite := fiber.CookieSameSiteStrictMode
	if h.production {
		sameSite = fiber.CookieSameSiteNoneMode
	}

	return &fiber.Cookie{
		Name:     sessionCookieName,
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
	}
}
