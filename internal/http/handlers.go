package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/lock"
	"stockledger/internal/logging"
	"stockledger/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const moduleName = "http"

type Handler struct {
	svc      *service.Service
	logger   *logrus.Logger
	validate *validator.Validate
}

func NewHandler(svc *service.Service, logger *logrus.Logger) *Handler {
	return &Handler{
		svc:      svc,
		logger:   logger,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// decodeValid decodes a strict JSON body into out and runs its validate tags.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil {
		writeCodedError(w, http.StatusBadRequest, domain.CodeValidation, err.Error())
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		writeCodedError(w, http.StatusBadRequest, domain.CodeValidation, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	fe := fieldErrs[0]
	// Namespace starts with the request struct name.
	_, field, _ := strings.Cut(fe.Namespace(), ".")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "gte":
		return field + " must be at least " + fe.Param()
	case "min":
		return field + " must contain at least " + fe.Param() + " entries"
	case "max":
		return field + " is too long"
	default:
		return field + " is invalid"
	}
}

// writeServiceError maps business errors to their HTTP category. Anything
// without a code is an internal failure and is logged with the request.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if code, ok := domain.CodeOf(err); ok {
		writeCodedError(w, statusFor(code), code, err.Error())
		return
	}
	if errors.Is(err, lock.ErrNotObtained) {
		writeError(w, http.StatusConflict, "document is busy, retry the request")
		return
	}
	logging.LogError(h.logger, moduleName, r.Method+" "+r.URL.Path, "unhandled service error", nil, err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func statusFor(code domain.Code) int {
	switch code.Category() {
	case domain.CategoryNotFound:
		return http.StatusNotFound
	case domain.CategoryConflict:
		return http.StatusConflict
	case domain.CategoryForbidden:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("value cannot be negative")
	}
	return parsed, nil
}

func parseOptionalInt64(raw string) (*int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return nil, fmt.Errorf("invalid id value: %s", raw)
	}
	return &parsed, nil
}

func parseOptionalBool(raw, name string) (*bool, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", name)
	}
	return &parsed, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

// page reads limit and offset; limit falls back to defaultLimit.
func page(r *http.Request, defaultLimit int) (int, int, error) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeCodedError(w http.ResponseWriter, status int, code domain.Code, message string) {
	writeJSON(w, status, map[string]any{"error": message, "code": code})
}

func badRequest(w http.ResponseWriter, err error) {
	writeCodedError(w, http.StatusBadRequest, domain.CodeValidation, err.Error())
}
