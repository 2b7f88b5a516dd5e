package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	TraceID   key = "trace_id"
	RequestID key = "request_id"
	UserID    key = "user_id"
	// WorkerID identifies the grading worker that owns a claim.
	WorkerID key = "worker_id"
	// Viewer carries the resolved model.Viewer for the current request.
	Viewer key = "viewer"
)
