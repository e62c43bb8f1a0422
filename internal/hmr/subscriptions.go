package hmr

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/resource"
	"github.com/giantswarm/hotpatch/pkg/logging"
)

// Subscribe registers l for updates of res and returns a function that
// removes it again. The returned function may be called any number of times.
//
// The first listener of a resource sends a subscribe message; removing the
// last one sends an unsubscribe message. Send failures are logged: the
// transport re-subscribes every registered resource on reconnect.
func (r *Reconciler) Subscribe(ctx context.Context, res resource.Resource, l Listener) (unsubscribe func()) {
	key := res.Key()

	r.mu.Lock()
	sub, ok := r.subs[key]
	if !ok {
		res = res.Clone()
		sub = &subscription{
			resource:  res,
			listeners: make(map[uint64]Listener),
		}
		sub.teardown = func(ctx context.Context) {
			r.send(ctx, protocol.Unsubscribe(res))
		}
		r.subs[key] = sub
		// Sent under the lock so that subscribe and unsubscribe for one key
		// reach the wire in registration order.
		r.send(ctx, protocol.Subscribe(res))
	}
	id := sub.nextID
	sub.nextID++
	sub.listeners[id] = l
	n := len(r.subs)
	r.mu.Unlock()

	r.metrics.SetSubscriptions(n)

	var once sync.Once
	return func() {
		once.Do(func() { r.removeListener(context.WithoutCancel(ctx), key, sub, id) })
	}
}

func (r *Reconciler) removeListener(ctx context.Context, key resource.Key, sub *subscription, id uint64) {
	r.mu.Lock()
	defer func() {
		n := len(r.subs)
		r.mu.Unlock()
		r.metrics.SetSubscriptions(n)
	}()

	// The subscription may already be gone (notFound) or replaced by a newer one.
	if current, ok := r.subs[key]; !ok || current != sub {
		return
	}

	delete(sub.listeners, id)
	if len(sub.listeners) > 0 {
		return
	}

	delete(r.subs, key)
	sub.teardown(ctx)
}

// Resubscribe sends a subscribe message for every registered resource. The
// transport calls it after each (re)connect.
//
// attach, if not nil, runs first with the registry locked. A transport
// publishes its new connection there: a concurrent Subscribe then either
// registers before attach and is sent by the replay, or after the replay and
// is sent directly, never both.
func (r *Reconciler) Resubscribe(ctx context.Context, attach func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if attach != nil {
		attach()
	}
	for _, res := range r.resourcesLocked() {
		r.send(ctx, protocol.Subscribe(res))
	}
}

// Resources returns the subscribed resources ordered by key.
func (r *Reconciler) Resources() []resource.Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resourcesLocked()
}

func (r *Reconciler) resourcesLocked() []resource.Resource {
	keys := make([]string, 0, len(r.subs))
	for key := range r.subs {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)

	out := make([]resource.Resource, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.subs[resource.Key(key)].resource)
	}
	return out
}

// send must be called with r.mu held.
func (r *Reconciler) send(ctx context.Context, msg protocol.ClientMessage) {
	if err := r.outbound.Send(ctx, msg); err != nil {
		if errors.Is(err, ErrOffline) {
			logging.Debug("Reconciler", "Deferred %s for %s until connected", msg.Type, msg.Resource)
			return
		}
		logging.Warn("Reconciler", "Failed to send %s for %s: %v", msg.Type, msg.Resource, err)
		return
	}
	r.metrics.ControlSent(string(msg.Type))
	logging.Debug("Reconciler", "Sent %s for %s", msg.Type, msg.Resource)
}
