package log

// Common field names for structured logging
const (
	FieldComponent       = "component"
	FieldRequestID       = "request_id"
	FieldClientIP        = "client_ip"
	FieldMethod          = "method"
	FieldPath            = "path"
	FieldQuery           = "query"
	FieldStatusCode      = "status_code"
	FieldDuration        = "duration_ms"
	FieldDurationHuman   = "duration_human"
	FieldUserAgent       = "user_agent"
	FieldSuccess         = "success"
	FieldError           = "error"
	FieldOperation       = "operation"
	FieldUserID          = "user_id"
	FieldTransactionID   = "transaction_id"
	FieldTransactionType = "transaction_type"
	FieldGoalID          = "goal_id"
	FieldChallengeID     = "challenge_id"
	FieldCatalogID       = "catalog_id"
	FieldAmount          = "amount"
	FieldPoints          = "points"
	FieldBalance         = "balance"
	FieldEventType       = "event_type"
	FieldSheetsRef       = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLedger     = "ledger"
	ComponentReconciler = "reconciler"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
	ComponentAdmin      = "admin"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpFund      = "fund"
	OpTopUp     = "top_up"
	OpAccept    = "accept"
	OpAbandon   = "abandon"
	OpReward    = "reward"
	OpReconcile = "reconcile"
	OpPublish   = "publish"
	OpExport    = "export"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field; nil errors are skipped
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUser scopes the entry to a ledger owner
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithTransaction adds the fields describing a ledger entry
func (f LogFields) WithTransaction(id, typ, amount string) LogFields {
	f[FieldTransactionID] = id
	f[FieldTransactionType] = typ
	f[FieldAmount] = amount
	return f
}

func (f LogFields) WithGoal(id string) LogFields {
	f[FieldGoalID] = id
	return f
}

// WithChallenge adds the instance id and its catalog id
func (f LogFields) WithChallenge(id, catalogID string) LogFields {
	f[FieldChallengeID] = id
	f[FieldCatalogID] = catalogID
	return f
}

func (f LogFields) WithPoints(points int64) LogFields {
	f[FieldPoints] = points
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
