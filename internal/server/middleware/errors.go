package middleware

import "github.com/gofiber/fiber/v2"

// ErrorBody is the JSON shape of every error response. Route tells the client where to
// navigate next (e.g. "/login" after a stale step-up challenge).
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Route string `json:"route,omitempty"`
}

// WriteError writes an ErrorBody with the given status.
func WriteError(c *fiber.Ctx, status int, msg, field, route string) error {
	return c.Status(status).JSON(ErrorBody{Error: msg, Field: field, Route: route})
}

// BadRequest is the response for unparsable request bodies.
func BadRequest(c *fiber.Ctx) error {
	return WriteError(c, fiber.StatusBadRequest, "invalid input", "", "")
}

// Internal hides unexpected errors behind a generic message. The error itself is logged by the caller.
func Internal(c *fiber.Ctx) error {
	return WriteError(c, fiber.StatusInternalServerError, "Something went wrong. Please try again later.", "", "")
}
