package hmr

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/resource"
)

// Listener receives the update delivered for a subscribed resource: the
// aggregate of a batch for partial updates, the raw message otherwise.
// A non-nil error is a listener failure and resets the reconciler.
type Listener func(ctx context.Context, msg protocol.ServerMessage) error

// Outbound sends control messages to the server.
type Outbound interface {
	Send(ctx context.Context, msg protocol.ClientMessage) error
}

// ErrOffline is returned by an Outbound that has no connection. The message
// is not lost: subscriptions are replayed by Resubscribe once connected.
var ErrOffline = errors.New("not connected")

// OutboundFunc adapts a function to Outbound.
type OutboundFunc func(ctx context.Context, msg protocol.ClientMessage) error

// Send implements Outbound.
func (f OutboundFunc) Send(ctx context.Context, msg protocol.ClientMessage) error {
	return f(ctx, msg)
}

// Hooks are invoked at fixed points of frame processing. Nil hooks are skipped.
type Hooks struct {
	// BeforeRefresh runs before the first delivery of a frame.
	BeforeRefresh func()

	// Refresh runs after all deliveries of a frame were applied.
	Refresh func()

	// BuildOK runs right after Refresh when no error-level issue is reported.
	BuildOK func()

	// IssuesChanged runs whenever the de-duplicated issue list changes.
	IssuesChanged func(list []issues.Issue)

	// Error receives the error that aborted a frame.
	Error func(err error)

	// Reset runs after the reconciler discarded its state.
	Reset func(reason string)
}

// ListenerError wraps the failure of a listener.
type ListenerError struct {
	Resource resource.Resource
	Err      error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener for %s failed: %v", e.Resource, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

// criticalSeverities mark a build as unhealthy.
var criticalSeverities = map[string]bool{
	"bug":   true,
	"fatal": true,
	"error": true,
}

func hasCritical(list []issues.Issue) bool {
	for _, i := range list {
		if criticalSeverities[i.Severity] {
			return true
		}
	}
	return false
}
