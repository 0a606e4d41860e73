package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"gallery-store/internal/auth"
	"gallery-store/internal/service"
	"gallery-store/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

var validationOnce sync.Once

// registerValidation makes validator report json field names
func registerValidation() {
	validationOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes and validates the request body
func bindJSON(c *gin.Context, req interface{}) error {
	return bindingError(c.ShouldBindJSON(req))
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted
func bindOptionalJSON(c *gin.Context, req interface{}) error {
	if c.Request.ContentLength == 0 {
		return bindingError(binding.Validator.ValidateStruct(req))
	}
	return bindJSON(c, req)
}

// bindingError reports the first problem of a request as a field error
func bindingError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &service.FieldError{Field: fe.Field(), Message: validationMessage(fe)}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &service.FieldError{Field: typeErr.Field, Message: "has the wrong type"}
	}

	return &service.FieldError{Field: "body", Message: "must be a valid JSON object"}
}

func validationMessage(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + unit
	case "max":
		return "must be at most " + fe.Param() + unit
	case "len":
		return "must be exactly " + fe.Param() + unit
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

// respondError maps service errors to status codes. Unexpected errors are logged and
// hidden behind a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var fieldErr *service.FieldError

	switch {
	case errors.As(err, &fieldErr):
		c.JSON(http.StatusBadRequest, errorResponse{
			Message: fieldErr.Field + " " + fieldErr.Message,
			Field:   fieldErr.Field,
		})
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, errorResponse{Message: "Unauthorized"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, errorResponse{Message: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Message: "Not found"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, errorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrInvalidOTP),
		errors.Is(err, service.ErrCheckoutNotVerified),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrTotalMismatch),
		errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, &service.FieldError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}
