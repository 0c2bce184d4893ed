package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cookeng/handbook-mcp/internal/clients"
)

// Dispatcher routes tool call requests to registered handlers, gating
// each call on the client registry. Registration happens at wiring time;
// Dispatch is safe for concurrent use afterwards.
type Dispatcher struct {
	registry *clients.Registry
	tools    map[string]*Tool
	order    []string
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given client registry.
func NewDispatcher(registry *clients.Registry, logger *slog.Logger) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("client registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		tools:    make(map[string]*Tool),
		logger:   logger,
	}, nil
}

// Register adds a tool. Registration errors are programmer errors and
// abort startup.
func (d *Dispatcher) Register(t *Tool) error {
	switch {
	case t == nil:
		return errors.New("tool is required")
	case t.Name == "":
		return errors.New("tool name is required")
	case t.Handler == nil:
		return fmt.Errorf("tool %q: handler is required", t.Name)
	case t.Input == nil:
		return fmt.Errorf("tool %q: input schema is required", t.Name)
	}
	if _, exists := d.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}

	resolved, err := t.Input.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %q: resolving input schema: %w", t.Name, err)
	}
	t.resolved = resolved

	d.tools[t.Name] = t
	d.order = append(d.order, t.Name)
	return nil
}

// Tools returns the registered tools in registration order.
func (d *Dispatcher) Tools() []*Tool {
	out := make([]*Tool, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.tools[name])
	}
	return out
}

// Dispatch executes one tool call and always produces exactly one
// Response. Failures are classified (unknown tool, invalid arguments,
// unavailable dependency, execution error) and never escape as Go
// errors or panics; the hosting protocol stays alive no matter what a
// constructor or handler does.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	requestID := uuid.NewString()
	logger := d.logger.With("request_id", requestID, "tool", req.Tool)

	t, ok := d.tools[req.Tool]
	if !ok {
		logger.Warn("unknown tool requested")
		return failure(&Failure{
			Kind:      KindUnknownTool,
			Message:   fmt.Sprintf("no tool named %q is registered", req.Tool),
			RequestID: requestID,
		})
	}

	if f := d.validateArgs(t, req.Args); f != nil {
		f.RequestID = requestID
		logger.Warn("invalid arguments", "field", f.Field, "reason", f.Message)
		return failure(f)
	}

	deps, err := d.registry.EnsureReady(ctx, t.Clients...)
	if err != nil {
		var initErr *clients.InitError
		if errors.As(err, &initErr) {
			logger.Warn("dependency unavailable", "slot", initErr.Slot, "error", initErr.Err)
			return failure(&Failure{
				Kind:      KindDependencyUnavailable,
				Message:   fmt.Sprintf("dependency %q is unavailable: %v", initErr.Slot, initErr.Err),
				Slot:      initErr.Slot,
				RequestID: requestID,
			})
		}
		// Cancelled wait, closed registry, undeclared slot.
		logger.Warn("acquiring clients failed", "error", err)
		return failure(&Failure{
			Kind:      KindDependencyUnavailable,
			Message:   err.Error(),
			RequestID: requestID,
		})
	}

	data, err := d.invoke(ctx, t, req.Args, deps)
	if err != nil {
		logger.Warn("tool execution failed", "error", err)
		return failure(&Failure{
			Kind:      KindExecution,
			Message:   err.Error(),
			RequestID: requestID,
		})
	}

	logger.Debug("tool call served")
	return Response{Status: StatusOK, Data: data}
}

// invoke runs the handler with panic containment. A panicking handler
// must not take down the serving loop; it degrades to an execution
// failure for this one call.
func (d *Dispatcher) invoke(ctx context.Context, t *Tool, args map[string]any, deps clients.Handles) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("tool %q panicked: %v", t.Name, r)
		}
	}()
	return t.Handler(ctx, args, deps)
}

// validateArgs checks the request against the tool's input schema before
// anything else runs. Missing required fields get a field-attributed
// failure; everything else falls through to full schema validation.
func (d *Dispatcher) validateArgs(t *Tool, args map[string]any) *Failure {
	if args == nil {
		args = map[string]any{}
	}

	for _, name := range t.Input.Required {
		if _, present := args[name]; !present {
			return &Failure{
				Kind:    KindInvalidArgument,
				Message: fmt.Sprintf("required argument %q is missing", name),
				Field:   name,
			}
		}
	}

	if err := t.resolved.Validate(args); err != nil {
		return &Failure{
			Kind:    KindInvalidArgument,
			Message: err.Error(),
		}
	}
	return nil
}

func failure(f *Failure) Response {
	return Response{Status: StatusError, Failure: f}
}
