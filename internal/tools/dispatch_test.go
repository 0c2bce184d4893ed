package tools

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookeng/handbook-mcp/internal/clients"
	"github.com/cookeng/handbook-mcp/internal/log"
)

type echoInput struct {
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

func newTestDispatcher(t *testing.T, reg *clients.Registry) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(reg, log.NewNop())
	require.NoError(t, err)
	return d
}

func echoTool(handler Handler, slots ...string) *Tool {
	return &Tool{
		Name:        "echo",
		Description: "echoes its message argument",
		Input:       schemaFor[echoInput](),
		Clients:     slots,
		Handler:     handler,
	}
}

func TestNewDispatcher(t *testing.T) {
	t.Run("nil registry rejected", func(t *testing.T) {
		_, err := NewDispatcher(nil, log.NewNop())
		assert.Error(t, err)
	})

	t.Run("nil logger tolerated", func(t *testing.T) {
		d, err := NewDispatcher(clients.New(log.NewNop()), nil)
		require.NoError(t, err)
		assert.NotNil(t, d)
	})
}

func TestDispatcherRegister(t *testing.T) {
	okHandler := func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
		return nil, nil
	}

	tests := []struct {
		name    string
		tool    *Tool
		wantErr bool
	}{
		{name: "nil tool", tool: nil, wantErr: true},
		{name: "empty name", tool: &Tool{Input: schemaFor[echoInput](), Handler: okHandler}, wantErr: true},
		{name: "missing handler", tool: &Tool{Name: "x", Input: schemaFor[echoInput]()}, wantErr: true},
		{name: "missing schema", tool: &Tool{Name: "x", Handler: okHandler}, wantErr: true},
		{name: "valid", tool: echoTool(okHandler), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(t, clients.New(log.NewNop()))
			err := d.Register(tt.tool)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("duplicate name rejected", func(t *testing.T) {
		d := newTestDispatcher(t, clients.New(log.NewNop()))
		require.NoError(t, d.Register(echoTool(okHandler)))
		assert.Error(t, d.Register(echoTool(okHandler)))
	})

	t.Run("tools listed in registration order", func(t *testing.T) {
		d := newTestDispatcher(t, clients.New(log.NewNop()))
		first := echoTool(okHandler)
		second := echoTool(okHandler)
		second.Name = "second"
		require.NoError(t, d.Register(first))
		require.NoError(t, d.Register(second))

		listed := d.Tools()
		require.Len(t, listed, 2)
		assert.Equal(t, "echo", listed[0].Name)
		assert.Equal(t, "second", listed[1].Name)
	})
}

func TestDispatchUnknownTool(t *testing.T) {
	var constructed atomic.Int32
	reg := clients.New(log.NewNop())
	require.NoError(t, reg.Declare("svc", func(ctx context.Context) (any, error) {
		constructed.Add(1)
		return "handle", nil
	}))
	reg.Seal()

	d := newTestDispatcher(t, reg)
	require.NoError(t, d.Register(echoTool(func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
		return nil, nil
	}, "svc")))

	resp := d.Dispatch(context.Background(), Request{Tool: "no_such_tool"})

	assert.Equal(t, StatusError, resp.Status)
	require.NotNil(t, resp.Failure)
	assert.Equal(t, KindUnknownTool, resp.Failure.Kind)
	assert.NotEmpty(t, resp.Failure.RequestID)
	assert.Equal(t, int32(0), constructed.Load(), "unknown tool must not touch the registry")
}

func TestDispatchInvalidArguments(t *testing.T) {
	var constructed atomic.Int32
	reg := clients.New(log.NewNop())
	require.NoError(t, reg.Declare("svc", func(ctx context.Context) (any, error) {
		constructed.Add(1)
		return "handle", nil
	}))
	reg.Seal()

	d := newTestDispatcher(t, reg)
	require.NoError(t, d.Register(echoTool(func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
		return "never reached", nil
	}, "svc")))

	t.Run("missing required field names the field", func(t *testing.T) {
		resp := d.Dispatch(context.Background(), Request{Tool: "echo", Args: map[string]any{}})

		assert.Equal(t, StatusError, resp.Status)
		require.NotNil(t, resp.Failure)
		assert.Equal(t, KindInvalidArgument, resp.Failure.Kind)
		assert.Equal(t, "message", resp.Failure.Field)
	})

	t.Run("wrong type rejected by schema", func(t *testing.T) {
		resp := d.Dispatch(context.Background(), Request{
			Tool: "echo",
			Args: map[string]any{"message": "hi", "count": "not a number"},
		})

		assert.Equal(t, StatusError, resp.Status)
		require.NotNil(t, resp.Failure)
		assert.Equal(t, KindInvalidArgument, resp.Failure.Kind)
	})

	t.Run("nil args treated as empty object", func(t *testing.T) {
		resp := d.Dispatch(context.Background(), Request{Tool: "echo", Args: nil})

		require.NotNil(t, resp.Failure)
		assert.Equal(t, KindInvalidArgument, resp.Failure.Kind)
	})

	assert.Equal(t, int32(0), constructed.Load(), "validation failures must not construct clients")
}

func TestDispatchDependencyUnavailable(t *testing.T) {
	construct := errors.New("connection refused")
	var calls atomic.Int32
	reg := clients.New(log.NewNop())
	require.NoError(t, reg.Declare("svc", func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, construct
		}
		return "handle", nil
	}))
	reg.Seal()

	d := newTestDispatcher(t, reg)
	require.NoError(t, d.Register(echoTool(func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
		h, err := clients.HandleAs[string](deps, "svc")
		if err != nil {
			return nil, err
		}
		return h, nil
	}, "svc")))

	args := map[string]any{"message": "hi"}

	// First call hits the failing constructor and reports the slot.
	resp := d.Dispatch(context.Background(), Request{Tool: "echo", Args: args})
	assert.Equal(t, StatusError, resp.Status)
	require.NotNil(t, resp.Failure)
	assert.Equal(t, KindDependencyUnavailable, resp.Failure.Kind)
	assert.Equal(t, "svc", resp.Failure.Slot)
	assert.Contains(t, resp.Failure.Message, "connection refused")

	// The failed slot reset, so the next call retries and succeeds.
	resp = d.Dispatch(context.Background(), Request{Tool: "echo", Args: args})
	assert.Equal(t, StatusOK, resp.Status)
	assert.Equal(t, "handle", resp.Data)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatchSingleFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	reg := clients.New(log.NewNop())
	require.NoError(t, reg.Declare("svc", func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "handle", nil
	}))
	reg.Seal()

	d := newTestDispatcher(t, reg)
	require.NoError(t, d.Register(echoTool(func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
		return clients.HandleAs[string](deps, "svc")
	}, "svc")))

	const callers = 8
	responses := make([]Response, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses[i] = d.Dispatch(context.Background(), Request{
				Tool: "echo",
				Args: map[string]any{"message": "hi"},
			})
		}()
	}

	assert.Eventually(t, func() bool {
		return reg.State("svc") == clients.StateInitializing
	}, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent dispatches share one construction")
	for _, resp := range responses {
		assert.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, "handle", resp.Data)
	}
}

func TestDispatchExecutionFailure(t *testing.T) {
	reg := clients.New(log.NewNop())
	reg.Seal()

	t.Run("handler error", func(t *testing.T) {
		d := newTestDispatcher(t, reg)
		require.NoError(t, d.Register(echoTool(func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
			return nil, errors.New("upstream timeout")
		})))

		resp := d.Dispatch(context.Background(), Request{Tool: "echo", Args: map[string]any{"message": "hi"}})

		assert.Equal(t, StatusError, resp.Status)
		require.NotNil(t, resp.Failure)
		assert.Equal(t, KindExecution, resp.Failure.Kind)
		assert.Contains(t, resp.Failure.Message, "upstream timeout")
	})

	t.Run("handler panic contained", func(t *testing.T) {
		d := newTestDispatcher(t, reg)
		require.NoError(t, d.Register(echoTool(func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
			panic("boom")
		})))

		resp := d.Dispatch(context.Background(), Request{Tool: "echo", Args: map[string]any{"message": "hi"}})

		assert.Equal(t, StatusError, resp.Status)
		require.NotNil(t, resp.Failure)
		assert.Equal(t, KindExecution, resp.Failure.Kind)
		assert.Contains(t, resp.Failure.Message, "boom")
	})
}

func TestDispatchSuccess(t *testing.T) {
	reg := clients.New(log.NewNop())
	require.NoError(t, reg.Declare("svc", func(ctx context.Context) (any, error) {
		return "handle", nil
	}))
	reg.Seal()

	d := newTestDispatcher(t, reg)
	require.NoError(t, d.Register(echoTool(func(ctx context.Context, args map[string]any, deps clients.Handles) (any, error) {
		in, err := DecodeArgs[echoInput](args)
		if err != nil {
			return nil, err
		}
		return in.Message, nil
	}, "svc")))

	resp := d.Dispatch(context.Background(), Request{Tool: "echo", Args: map[string]any{"message": "hello"}})

	assert.Equal(t, StatusOK, resp.Status)
	assert.Nil(t, resp.Failure)
	assert.Equal(t, "hello", resp.Data)
}

func TestDecodeArgs(t *testing.T) {
	t.Run("typed fields", func(t *testing.T) {
		in, err := DecodeArgs[echoInput](map[string]any{"message": "hi", "count": float64(3)})
		require.NoError(t, err)
		assert.Equal(t, "hi", in.Message)
		assert.Equal(t, 3, in.Count)
	})

	t.Run("omitted optional field", func(t *testing.T) {
		in, err := DecodeArgs[echoInput](map[string]any{"message": "hi"})
		require.NoError(t, err)
		assert.Zero(t, in.Count)
	})

	t.Run("incompatible value", func(t *testing.T) {
		_, err := DecodeArgs[echoInput](map[string]any{"message": []any{1, 2}})
		assert.Error(t, err)
	})
}

func TestSchemaFor(t *testing.T) {
	s := schemaFor[echoInput]()
	require.NotNil(t, s)
	assert.Contains(t, s.Required, "message")
	assert.NotContains(t, s.Required, "count")
}
