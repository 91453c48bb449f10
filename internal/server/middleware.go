package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"wedding-rsvp/internal/apperr"
)

// Logger logs one line per request
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}

			event := logger.Info()
			if res.Status >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.
				Str("request_id", id).
				Str("method", req.Method).
				Str("route", c.Path()).
				Int("status", res.Status).
				Str("remote_ip", c.RealIP()).
				Dur("response_time", time.Since(start)).
				Int64("response_size", res.Size).
				Msg("Request")

			return nil
		}
	}
}

// ErrorHandler renders errors as {"error": message}, plus any metadata the error carries.
// Upstream and internal detail is logged, never returned.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := apperr.StatusCode(err)
		message := apperr.PublicMessage(err)
		meta := apperr.MetaOf(err)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = http.StatusText(he.Code)
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		}

		event := logger.Warn()
		if code >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Err(err).
			Str("kind", string(apperr.KindOf(err))).
			Str("route", c.Path()).
			Int("status", code).
			Msg("Request failed")

		body := map[string]any{"error": message}
		for k, v := range meta {
			body[k] = v
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

// Validator adapts go-playground/validator to echo
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request body validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks struct tags and reports failures as validation errors
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("Invalid request body")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s)", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
