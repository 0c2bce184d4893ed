package tools

// Slot names for the external clients the handbook tools depend on.
// Declared by the application wiring, requested per tool via
// Tool.Clients, resolved by the client registry at call time.
const (
	// SlotHandbook is the Weaviate-backed handbook store
	// (*manual.Store).
	SlotHandbook = "weaviate"

	// SlotVision is the OpenAI answer generator (*answer.Generator).
	SlotVision = "openai"
)

// Status reports whether a dispatch produced a payload or a failure.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Kind classifies a dispatch failure. Every kind is recoverable: the
// process keeps serving, and for dependency failures the failed slot
// resets so the next call retries construction.
type Kind string

const (
	// KindUnknownTool - no handler registered under the requested name.
	KindUnknownTool Kind = "unknown_tool"

	// KindInvalidArgument - the arguments do not match the tool schema.
	// Reported without touching the registry or the handler.
	KindInvalidArgument Kind = "invalid_argument"

	// KindDependencyUnavailable - constructing a required client failed.
	// Failure.Slot names the dependency so the caller knows exactly
	// what is down and that a retry may recover.
	KindDependencyUnavailable Kind = "dependency_unavailable"

	// KindExecution - the handler itself failed after its clients were
	// acquired.
	KindExecution Kind = "tool_execution"
)

// Failure describes why a dispatch did not produce a payload.
type Failure struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Slot      string `json:"slot,omitempty"`       // set for KindDependencyUnavailable
	Field     string `json:"field,omitempty"`      // set for KindInvalidArgument when attributable
	RequestID string `json:"request_id,omitempty"` // for support correlation
}

// Request is one protocol-level tool call.
type Request struct {
	Tool string
	Args map[string]any
}

// Response is the single, guaranteed outcome of a dispatch: either Data
// (Status OK) or Failure (Status error), never both, never neither.
type Response struct {
	Status  Status
	Data    any
	Failure *Failure
}

// Image is a binary visual attached to a payload.
type Image struct {
	Data     []byte
	MIMEType string
}

// Payload is the structured success result for handbook tools: answer
// text plus any critical visuals from the matched pages.
type Payload struct {
	Text   string
	Images []Image
}
