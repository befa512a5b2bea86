package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldUsername   = "username"
	FieldRoute      = "route"
	FieldRedirect   = "redirect"
	FieldNoticeKind = "notice_kind"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldSourceID   = "source_id"
	FieldRecordID   = "record_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentTransport = "transport"
	ComponentSession   = "session"
	ComponentRouter    = "router"
	ComponentAPI       = "api"
	ComponentNotify    = "notify"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentSheets    = "sheets"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpLogin    = "login"
	OpLogout   = "logout"
	OpHydrate  = "hydrate"
	OpNavigate = "navigate"
	OpRequest  = "request"
	OpExport   = "export"
	OpImport   = "import"
	OpPublish  = "publish"
)

// Error types used to classify failed requests
const (
	ErrorTypeAuth       = "auth_error"
	ErrorTypePermission = "permission_error"
	ErrorTypeValidation = "validation_error"
	ErrorTypeNetwork    = "network_error"
	ErrorTypeStorage    = "storage_error"
)

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

// WithError adds the error field; nil errors are ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(kind string) LogFields {
	f[FieldErrorType] = kind
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithHTTPRequest adds outgoing request fields
func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

// WithHTTPResponse adds response fields. A zero status means no response arrived.
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode > 0 && statusCode < 400
	return f
}

func (f LogFields) WithRoute(route, redirect string) LogFields {
	f[FieldRoute] = route
	if redirect != "" {
		f[FieldRedirect] = redirect
	}
	return f
}

// ToSlice converts LogFields to a slice for slog. The component key is left
// out since Logger adds its own.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
