package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldClientID = "client_id"

	// Streaming
	FieldStreamID    = "stream_id"
	FieldMessageID   = "message_id"
	FieldViewerCount = "viewer_count"

	// Service
	FieldService = "service"
)
