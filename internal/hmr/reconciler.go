package hmr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/metrics"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/resource"
	"github.com/giantswarm/hotpatch/internal/update"
	"github.com/giantswarm/hotpatch/pkg/logging"
)

// Config configures a Reconciler.
type Config struct {
	// Outbound receives subscribe and unsubscribe messages. Required.
	Outbound Outbound

	Hooks Hooks

	// Metrics is optional.
	Metrics *metrics.Recorder
}

// Reconciler aggregates pending updates per resource and delivers them to
// subscribed listeners.
type Reconciler struct {
	mu sync.Mutex

	outbound Outbound
	hooks    Hooks
	metrics  *metrics.Recorder

	// pending holds one aggregate per resource key; order keeps arrival
	// order so flushes are deterministic.
	pending map[resource.Key]*protocol.ServerMessage
	order   []resource.Key

	subs map[resource.Key]*subscription

	issues *issues.Aggregator
}

type subscription struct {
	resource  resource.Resource
	listeners map[uint64]Listener
	nextID    uint64
	teardown  func(ctx context.Context)
}

// New creates a Reconciler.
func New(cfg Config) *Reconciler {
	outbound := cfg.Outbound
	if outbound == nil {
		outbound = OutboundFunc(func(context.Context, protocol.ClientMessage) error { return nil })
	}
	return &Reconciler{
		outbound: outbound,
		hooks:    cfg.Hooks,
		metrics:  cfg.Metrics,
		pending:  make(map[resource.Key]*protocol.ServerMessage),
		subs:     make(map[resource.Key]*subscription),
		issues:   issues.NewAggregator(),
	}
}

// Record inserts a partial message into the pending table, merging it with
// the aggregate already pending for the same resource. Listeners are not
// notified.
func (r *Reconciler) Record(msg protocol.ServerMessage) error {
	key := msg.Resource.Key()
	in := update.Instruction{}
	if msg.Instruction != nil {
		in = *msg.Instruction
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.pending[key]
	if !ok {
		stored := msg
		stored.Instruction = &in
		r.pending[key] = &stored
		r.order = append(r.order, key)
		return nil
	}

	merged, err := update.Merge(*existing.Instruction, in)
	if err != nil {
		r.metrics.InvariantViolation()
		return fmt.Errorf("merging update for %s: %w", msg.Resource, err)
	}
	existing.Instruction = &merged
	existing.Issues = msg.Issues
	r.metrics.UpdateMerged()
	logging.Debug("Reconciler", "Merged partial update for %s", msg.Resource)
	return nil
}

// FlushAll delivers every pending aggregate to the listeners of its
// resource and empties the pending table. It returns the number of
// aggregates flushed.
//
// Delivery stops at the first listener failure; the remaining aggregates
// are dropped together with the table.
func (r *Reconciler) FlushAll(ctx context.Context) (int, error) {
	r.mu.Lock()
	batch := make([]protocol.ServerMessage, 0, len(r.order))
	for _, key := range r.order {
		batch = append(batch, *r.pending[key])
	}
	r.pending = make(map[resource.Key]*protocol.ServerMessage)
	r.order = nil
	r.mu.Unlock()

	for _, msg := range batch {
		if err := r.deliver(ctx, msg); err != nil {
			return 0, err
		}
	}
	r.metrics.Flushed(len(batch))
	return len(batch), nil
}

// Notify delivers msg immediately, bypassing the pending table.
//
// A notFound message additionally removes the subscription of its
// resource without sending an unsubscribe: the server already closed it.
func (r *Reconciler) Notify(ctx context.Context, msg protocol.ServerMessage) error {
	err := r.deliver(ctx, msg)

	if msg.Type == protocol.TypeNotFound {
		r.forget(msg.Resource.Key())
		logging.Info("Reconciler", "Resource %s not found, dropped its subscription", msg.Resource)
	}
	return err
}

// HasPending reports whether any aggregate is waiting for a flush.
func (r *Reconciler) HasPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}

// Pending returns the aggregate waiting for res, if any.
func (r *Reconciler) Pending(res resource.Resource) (protocol.ServerMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.pending[res.Key()]
	if !ok {
		return protocol.ServerMessage{}, false
	}
	return *msg, true
}

// DiscardPending drops all pending aggregates. The transport calls it when a
// connection ends, since a new connection starts from a fresh server state.
func (r *Reconciler) DiscardPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = make(map[resource.Key]*protocol.ServerMessage)
	r.order = nil
}

// Issues returns the current de-duplicated issue list.
func (r *Reconciler) Issues() []issues.Issue {
	return r.issues.Issues()
}

// forget removes the subscription and pending aggregate of key without
// running the teardown action.
func (r *Reconciler) forget(key resource.Key) {
	r.mu.Lock()
	delete(r.subs, key)
	if _, ok := r.pending[key]; ok {
		delete(r.pending, key)
		r.order = removeKey(r.order, key)
	}
	n := len(r.subs)
	r.mu.Unlock()

	r.metrics.SetSubscriptions(n)
}

// deliver invokes every listener of msg's resource with msg.
func (r *Reconciler) deliver(ctx context.Context, msg protocol.ServerMessage) error {
	r.mu.Lock()
	sub, ok := r.subs[msg.Resource.Key()]
	var listeners []Listener
	if ok {
		listeners = make([]Listener, 0, len(sub.listeners))
		for _, l := range sub.listeners {
			listeners = append(listeners, l)
		}
	}
	r.mu.Unlock()

	for _, l := range listeners {
		if err := invoke(ctx, l, msg); err != nil {
			r.metrics.ListenerFailure()
			return &ListenerError{Resource: msg.Resource, Err: err}
		}
	}
	return nil
}

func invoke(ctx context.Context, l Listener, msg protocol.ServerMessage) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return l(ctx, msg)
}

// HandleFrame processes one socket frame. Errors abort the frame and reset
// the reconciler before being returned.
func (r *Reconciler) HandleFrame(ctx context.Context, frame protocol.Frame) error {
	r.metrics.FrameReceived(frame.Batch)

	if err := r.processFrame(ctx, frame); err != nil {
		r.fail(err)
		return err
	}
	return nil
}

func (r *Reconciler) processFrame(ctx context.Context, frame protocol.Frame) error {
	for _, msg := range frame.Messages {
		if err := r.handleMessage(ctx, msg); err != nil {
			return err
		}
	}
	return r.applyAggregated(ctx)
}

func (r *Reconciler) handleMessage(ctx context.Context, msg protocol.ServerMessage) error {
	r.metrics.MessageHandled(string(msg.Type))

	issues.Sort(msg.Issues)
	if list, changed := r.issues.Set(msg.Resource.Key(), msg.Issues); changed && r.hooks.IssuesChanged != nil {
		r.hooks.IssuesChanged(list)
	}

	switch msg.Type {
	case protocol.TypeIssues:
		return nil
	case protocol.TypePartial:
		return r.Record(msg)
	default:
		runHooks := !r.HasPending()
		if runHooks {
			call(r.hooks.BeforeRefresh)
		}
		if err := r.Notify(ctx, msg); err != nil {
			return err
		}
		if runHooks {
			r.finalize()
		}
		return nil
	}
}

func (r *Reconciler) applyAggregated(ctx context.Context) error {
	if !r.HasPending() {
		return nil
	}

	call(r.hooks.BeforeRefresh)
	if _, err := r.FlushAll(ctx); err != nil {
		return err
	}
	r.finalize()
	return nil
}

func (r *Reconciler) finalize() {
	call(r.hooks.Refresh)
	if !hasCritical(r.issues.Issues()) {
		call(r.hooks.BuildOK)
	}
}

// fail reports err and resets the reconciler state.
func (r *Reconciler) fail(err error) {
	var invariant *update.InvariantError
	reason := "listener failure"
	if errors.As(err, &invariant) {
		reason = "inconsistent update stream"
	}

	logging.Error("Reconciler", err, "Aborting frame, performing full reset")
	if r.hooks.Error != nil {
		r.hooks.Error(err)
	}
	r.Reset(reason)
}

// Reset discards pending aggregates and issues and runs the Reset hook.
// Subscriptions are kept.
func (r *Reconciler) Reset(reason string) {
	r.DiscardPending()
	if r.issues.Reset() && r.hooks.IssuesChanged != nil {
		r.hooks.IssuesChanged(nil)
	}
	r.metrics.Reset()

	if r.hooks.Reset != nil {
		r.hooks.Reset(reason)
	}
}

func call(hook func()) {
	if hook != nil {
		hook()
	}
}

func removeKey(keys []resource.Key, key resource.Key) []resource.Key {
	for n, k := range keys {
		if k == key {
			return append(keys[:n], keys[n+1:]...)
		}
	}
	return keys
}
