package constants

const (
	APIBasePath             = "/api/v1"
	AuthorizationHeaderName = "Authorization"
	ContentTypeHeaderName   = "Content-Type"
	CorrelationIDHeaderName = "X-Correlation-ID"
	ContentTypeJSON         = "application/json"
	ContentTypeHTML         = "text/html; charset=utf-8"
	DefaultPageSize         = 10
	MaxPageSize             = 100
	TokenTypeBearer         = "Bearer"

	// Aliases for convenience
	HeaderContentType = ContentTypeHeaderName
)

// Gin context keys set by the middleware.
const (
	ContextKeyActor         = "actor"
	ContextKeyCorrelationID = "correlation_id"
)
