package server

import (
	"errors"
	"strconv"
	"strings"

	"propertyhub/internal/middleware"
	"propertyhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters. A zero Limit means no limit.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination extracts limit and offset. Listings are unbounded unless a limit is given.
func parsePagination(c *fiber.Ctx) Pagination {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		limit = 0
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter as a positive uint.
// On failure it writes a 404 JSON response for resource and returns errResponseWritten,
// so junk ids and unknown ids look the same to callers.
func (s *Server) parseID(c *fiber.Ctx, param string, resource string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError(resource))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// mapServiceError picks the HTTP status for an error returned by the service layer.
func mapServiceError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}

	switch appErr.Code {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeRemoteStore:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondServiceError logs 5xx causes and writes the mapped error response.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		logError(c, "request failed", err)
	}
	return models.RespondWithError(c, status, err)
}

func logError(c *fiber.Ctx, msg string, err error) {
	middleware.Logger.ErrorContext(c.UserContext(), msg,
		"error", err,
		"method", c.Method(),
		"path", c.Path(),
	)
}

// adminIDFromLocals returns the admin set by AuthRequired.
func adminIDFromLocals(c *fiber.Ctx) uint {
	id, _ := c.Locals("adminID").(uint)
	return id
}

// parseIfMatch reads a version from an If-Match header such as `"3"` or `W/"3"`.
func parseIfMatch(header string) (uint, bool) {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	if v == "" || v == "*" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}
