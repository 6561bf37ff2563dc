package api

import (
	"errors"

	domain "github.com/example/catalog-service/domain/catalog"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:          fiber.StatusBadRequest,
	domain.KindNotFound:            fiber.StatusNotFound,
	domain.KindDuplicateIdentifier: fiber.StatusConflict,
	domain.KindStoreUnavailable:    fiber.StatusServiceUnavailable,
	domain.KindCacheUnavailable:    fiber.StatusServiceUnavailable,
	domain.KindForbidden:           fiber.StatusForbidden,
}

var errBadBody = fiber.NewError(fiber.StatusBadRequest, "Invalid request body")

// errorHandler maps catalog errors to status codes. Anything unclassified
// is logged and masked as a 500.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorResponse{
				Error:   errorCode(fe.Code),
				Message: fe.Message,
			})
		}

		var ce *domain.Error
		if errors.As(err, &ce) {
			if status, ok := kindStatus[ce.Kind]; ok {
				if status == fiber.StatusServiceUnavailable {
					logger.Warn("store unavailable",
						zap.String("method", c.Method()),
						zap.String("path", c.Path()),
						zap.Error(err))
				}
				return c.Status(status).JSON(ErrorResponse{
					Error:   string(ce.Kind),
					Message: ce.Message,
				})
			}
		}

		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "server_error",
			Message: "Internal Server Error",
		})
	}
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusRequestEntityTooLarge:
		return "payload_too_large"
	default:
		if status >= fiber.StatusInternalServerError {
			return "server_error"
		}
		return "request_error"
	}
}
