// Package httpx holds the JSON request and response helpers shared by every
// HTTP handler.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/apperr"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Details []FieldDetail `json:"details,omitempty"`
}

type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode reads a JSON body into dst and runs its validate tags.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation(apperr.ReasonInvalidRequest, "invalid JSON: %v", err)
	}
	return Validate(dst)
}

// Validate runs the validate tags of v.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(apperr.ReasonInvalidRequest, "%v", err)
	}
	return &RequestError{Fields: details(verrs)}
}

// RequestError carries per-field validation failures.
type RequestError struct {
	Fields []FieldDetail
}

func (e *RequestError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "request validation failed: " + strings.Join(parts, "; ")
}

func (e *RequestError) Unwrap() error { return apperr.ErrValidation }

func details(verrs validator.ValidationErrors) []FieldDetail {
	out := make([]FieldDetail, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldDetail{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must be numeric"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "invalid value"
	}
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch {
	case apperr.HasReason(err, apperr.ReasonAccountBanned):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err. Integrity violations and unexpected errors are
// logged; integrity violations keep their reason so operators can find them.
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := Status(err)
	body := ErrorBody{Error: apperr.ReasonOf(err), Message: err.Error()}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		body.Error = apperr.ReasonInvalidRequest
		body.Message = "request validation failed"
		body.Details = reqErr.Fields
	}

	if status == http.StatusInternalServerError {
		entry := log.WithError(err)
		if errors.Is(err, apperr.ErrIntegrity) {
			entry.WithField("reason", body.Error).Error("integrity violation")
			body.Message = "integrity violation, operation aborted"
		} else {
			entry.Error("request failed")
			body.Error = "internal"
			body.Message = "internal server error"
		}
	}
	WriteJSON(w, status, body)
}

// Unauthorized writes a 401 with the given message.
func Unauthorized(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusUnauthorized, ErrorBody{Error: "unauthorized", Message: msg})
}

func Forbidden(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusForbidden, ErrorBody{Error: "forbidden", Message: msg})
}

// PathUUID parses the {name} path value as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperr.Validation(apperr.ReasonInvalidRequest, "%s must be a UUID", name)
	}
	return id, nil
}
