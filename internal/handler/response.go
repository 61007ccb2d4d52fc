package handler

import "github.com/gofiber/fiber/v2"

// envelope is the uniform response shape: a success flag, a message, and an
// optional payload.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondSuccess(ctx *fiber.Ctx, status int, message string, data any) error {
	return ctx.Status(status).JSON(envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondError(ctx *fiber.Ctx, status int, message string) error {
	return ctx.Status(status).JSON(envelope{
		Success: false,
		Message: message,
	})
}
