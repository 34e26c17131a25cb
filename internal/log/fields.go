package log

// Attribute keys shared across packages.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldCategoryID    = "category_id"
	FieldCategoryName  = "category_name"
	FieldCategoryType  = "category_type"
	FieldInserted      = "inserted"
	FieldSkipped       = "skip_reason"
	FieldRange         = "range"
	FieldCount         = "count"
	FieldBackend       = "backend"
	FieldSpreadsheetID = "spreadsheet_id"
)

// Component values.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSeeder    = "seeder"
	ComponentCategory  = "category"
	ComponentTombstone = "tombstone"
	ComponentAnalytics = "analytics"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

// Operation values.
const (
	OpCreate          = "create"
	OpRead            = "read"
	OpDelete          = "delete"
	OpList            = "list"
	OpSeedCategories  = "seed_categories"
	OpSeedSubcategory = "seed_subcategories"
	OpRecordTombstone = "record_tombstone"
	OpAggregate       = "aggregate"
	OpExport          = "export"
	OpConsume         = "consume"
	OpPublish         = "publish"
	OpShutdown        = "shutdown"
	OpStartup         = "startup"
)

// Error classifications for FieldErrorType.
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// Fields accumulates key/value pairs in insertion order. Every method
// returns a new slice, so a shared base can be extended per branch.
type Fields []any

func NewFields() Fields {
	return nil
}

// Add appends one pair.
func (f Fields) Add(key string, value any) Fields {
	return append(f[:len(f):len(f)], key, value)
}

func (f Fields) Operation(op string) Fields { return f.Add(FieldOperation, op) }

func (f Fields) User(userID string) Fields { return f.Add(FieldUserID, userID) }

func (f Fields) ClientIP(ip string) Fields { return f.Add(FieldClientIP, ip) }

func (f Fields) Category(name, typ string) Fields {
	return f.Add(FieldCategoryName, name).Add(FieldCategoryType, typ)
}

// Err adds the error text. A nil error adds nothing.
func (f Fields) Err(err error) Fields {
	if err == nil {
		return f
	}
	return f.Add(FieldError, err.Error())
}

func (f Fields) Request(method, path, query, userAgent string) Fields {
	return f.Add(FieldMethod, method).
		Add(FieldPath, path).
		Add(FieldQuery, query).
		Add(FieldUserAgent, userAgent)
}

// Response adds the status, duration and whether the status is below 400.
func (f Fields) Response(status int, durationMs int64) Fields {
	return f.Add(FieldStatusCode, status).
		Add(FieldDuration, durationMs).
		Add(FieldSuccess, status < 400)
}

// Args is f in the form slog's variadic methods take.
func (f Fields) Args() []any {
	return f
}
