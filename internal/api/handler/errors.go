package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"vibecall/backend/internal/apperror"
)

var statusByCode = map[apperror.Code]int{
	apperror.CodeUnauthorized:     http.StatusUnauthorized,
	apperror.CodeAlreadyQueued:    http.StatusConflict,
	apperror.CodeAlreadyInSession: http.StatusConflict,
	apperror.CodeNotFound:         http.StatusNotFound,
	apperror.CodeValidation:       http.StatusBadRequest,
	apperror.CodeProvisioning:     http.StatusServiceUnavailable,
	apperror.CodeInternal:         http.StatusInternalServerError,
}

type errorBody struct {
	Code      apperror.Code `json:"code"`
	Message   string        `json:"message"`
	Field     string        `json:"field,omitempty"`
	Retryable bool          `json:"retryable"`
}

// respondError renders err in the common error envelope. Errors outside the taxonomy
// become INTERNAL_ERROR without leaking details.
func respondError(c *gin.Context, err error) {
	var ae *apperror.Error
	if !errors.As(err, &ae) {
		ae = apperror.Internal(err)
	}
	status := statusByCode[ae.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		log.Error().Str("module", "api").Str("path", c.FullPath()).Err(err).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": errorBody{
		Code: ae.Code, Message: ae.Message, Field: ae.Field, Retryable: ae.Retryable,
	}})
}

var tagNameOnce sync.Once

// registerValidatorTagNames makes validation errors report JSON field names.
func registerValidatorTagNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindJSON decodes the body into dst. An empty body is allowed when optional is set.
func bindJSON(c *gin.Context, dst any, optional bool) error {
	if optional && (c.Request.Body == nil || c.Request.Body == http.NoBody || c.Request.ContentLength == 0) {
		return bindingError(binding.Validator.ValidateStruct(dst))
	}
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	if optional && errors.Is(err, io.EOF) {
		return bindingError(binding.Validator.ValidateStruct(dst))
	}
	return bindingError(err)
}

// bindingError converts binding failures to a field-named validation error.
func bindingError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperror.Validation(topLevelField(fe.Namespace()), describe(fe))
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apperror.Validation(strings.SplitN(typeErr.Field, ".", 2)[0], "has the wrong type")
	}
	if errors.Is(err, io.EOF) {
		return apperror.Validation("body", "request body is required")
	}
	return apperror.Validation("body", "malformed JSON")
}

// topLevelField turns "joinQueueRequest.ageRange.min" into "ageRange".
func topLevelField(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) < 2 {
		return namespace
	}
	field := parts[1]
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	return field
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when action is report"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "gtefield":
		return "must not be below " + fe.Param()
	default:
		return "is invalid"
	}
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
