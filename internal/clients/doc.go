// Package clients provides lazy, single-flight construction of external
// service clients.
//
// The server must answer the MCP handshake immediately and must not be
// killed by a dependency that is only needed once a tool is invoked.
// Registry therefore defers all client construction to the first
// EnsureReady call, guarantees at most one construction attempt per slot
// at any time, and reports a failed attempt to every caller waiting on it
// before resetting the slot so the next call can retry.
//
// # Slot lifecycle
//
//	Uninitialized --(EnsureReady, wins race)--> Initializing
//	Initializing  --(constructor succeeds)----> Ready (handle immutable)
//	Initializing  --(constructor fails)-------> Uninitialized (after all
//	                                            waiters observe the error)
//
// Callers that arrive while a construction is in flight wait on the same
// attempt and observe the same outcome. A waiter cancelling its context
// gives up waiting but does not abort the construction: the attempt is
// owned by the registry, not by any single caller.
//
// # Usage
//
//	reg := clients.New(logger)
//	err := reg.Declare("weaviate", func(ctx context.Context) (any, error) {
//	    return manual.Connect(ctx, storeCfg)
//	})
//	reg.Seal()
//
//	// per tool call:
//	handles, err := reg.EnsureReady(ctx, "weaviate")
//	store, err := clients.HandleAs[*manual.Store](handles, "weaviate")
package clients
