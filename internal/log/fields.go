package log

import (
	"errors"

	"kakeibo/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldPosition   = "position"
	FieldEntryDesc  = "entry_description"
	FieldAmount     = "amount_yen"
	FieldCategory   = "category"
	FieldEntryType  = "entry_type"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCLI       = "cli"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentTemplate  = "template"
)

// Operations defines standard operation names
const (
	OpAppend   = "append"
	OpList     = "list"
	OpDelete   = "delete"
	OpValidate = "validate"
	OpRender   = "render"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeCredential = "credential_error"
	ErrorTypeAuth       = "auth_error"
	ErrorTypeRemote     = "remote_error"
	ErrorTypeDecode     = "decode_error"
	ErrorTypeRange      = "range_error"
	ErrorTypeInternal   = "internal_error"
)

// ErrorType classifies err for the error_type field.
func ErrorType(err error) string {
	var (
		credErr   *core.CredentialError
		authErr   *core.AuthError
		remoteErr *core.RemoteError
		decodeErr *core.DecodeError
		rangeErr  *core.RangeError
	)
	switch {
	case errors.As(err, &credErr):
		return ErrorTypeCredential
	// An auth failure is usually wrapped in a RemoteError, so check it first.
	case errors.As(err, &authErr):
		return ErrorTypeAuth
	case errors.As(err, &remoteErr):
		return ErrorTypeRemote
	case errors.As(err, &decodeErr):
		return ErrorTypeDecode
	case errors.As(err, &rangeErr):
		return ErrorTypeRange
	case errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, core.ErrSignMismatch),
		errors.Is(err, core.ErrDescriptionLimit),
		errors.Is(err, core.ErrZeroDate):
		return ErrorTypeValidation
	default:
		return ErrorTypeInternal
	}
}

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message and its classification.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithPosition(position int) LogFields {
	f[FieldPosition] = position
	return f
}

// WithEntry adds entry fields. The description is included as entered.
func (f LogFields) WithEntry(e core.Entry) LogFields {
	f[FieldEntryDesc] = e.Description
	f[FieldAmount] = e.Amount
	f[FieldCategory] = e.Category
	f[FieldEntryType] = string(e.Type)
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
