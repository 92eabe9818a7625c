package utils

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details string      `json:"details,omitempty"`
	Code    int         `json:"code,omitempty"`
	Status  string      `json:"status,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SendError sends a structured error response based on HTTP status code and error details
func SendError(c *fiber.Ctx, httpCode int, message string) error {
	return c.Status(httpCode).JSON(ErrorResponse{
		Error:  message,
		Status: http.StatusText(httpCode),
		Code:   httpCode,
	})
}

// SendValidationError sends a validation error response
func SendValidationError(c *fiber.Ctx, field string, message string) error {
	return c.Status(http.StatusUnprocessableEntity).JSON(ErrorResponse{
		Error:   "Validation failed",
		Details: field + ": " + message,
		Code:    http.StatusUnprocessableEntity,
	})
}

// SendConflictError sends a conflict error response
func SendConflictError(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusConflict).JSON(ErrorResponse{
		Error:   "Conflict",
		Details: message,
		Code:    http.StatusConflict,
	})
}

// SendServiceUnavailableError sends a 503 for a dependency that is not ready
func SendServiceUnavailableError(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusServiceUnavailable).JSON(ErrorResponse{
		Error:   "Service unavailable",
		Details: message,
		Code:    http.StatusServiceUnavailable,
	})
}

// SendInternalServerError sends an internal server error response
func SendInternalServerError(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "Internal server error",
		Details: message,
		Code:    http.StatusInternalServerError,
	})
}
