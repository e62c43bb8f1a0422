package hmr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/metrics"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/resource"
	"github.com/giantswarm/hotpatch/internal/update"
)

// recordingOutbound remembers every control message sent.
type recordingOutbound struct {
	mu   sync.Mutex
	sent []protocol.ClientMessage
	err  error
}

func (o *recordingOutbound) Send(_ context.Context, msg protocol.ClientMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *recordingOutbound) setErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *recordingOutbound) countFor(t protocol.ClientMessageType, res resource.Resource) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, m := range o.sent {
		if m.Type == t && m.Resource.Key() == res.Key() {
			n++
		}
	}
	return n
}

func (o *recordingOutbound) types() []protocol.ClientMessageType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]protocol.ClientMessageType, len(o.sent))
	for n, m := range o.sent {
		out[n] = m.Type
	}
	return out
}

// hookLog records hook invocations in order.
type hookLog struct {
	calls  []string
	errs   []error
	issues [][]issues.Issue
}

func (h *hookLog) hooks() Hooks {
	return Hooks{
		BeforeRefresh: func() { h.calls = append(h.calls, "before") },
		Refresh:       func() { h.calls = append(h.calls, "refresh") },
		BuildOK:       func() { h.calls = append(h.calls, "ok") },
		IssuesChanged: func(list []issues.Issue) {
			h.calls = append(h.calls, "issues")
			h.issues = append(h.issues, list)
		},
		Error: func(err error) { h.errs = append(h.errs, err) },
		Reset: func(reason string) { h.calls = append(h.calls, "reset:"+reason) },
	}
}

func partial(path string, in update.Instruction) protocol.ServerMessage {
	return protocol.ServerMessage{
		Resource:    resource.Resource{Path: path},
		Type:        protocol.TypePartial,
		Instruction: &in,
	}
}

func chunk(id string, u update.ModuleUpdate) update.Instruction {
	return update.Instruction{Merged: &update.MergedUpdate{Chunks: update.ChunkUpdates{id: u}}}
}

func collect(received *[]protocol.ServerMessage) Listener {
	return func(_ context.Context, msg protocol.ServerMessage) error {
		*received = append(*received, msg)
		return nil
	}
}

func TestRecord_OnePendingEntryPerResource(t *testing.T) {
	r := New(Config{})

	require.NoError(t, r.Record(partial("a.js", chunk("c", update.Deleted("A", "B")))))
	require.NoError(t, r.Record(partial("a.js", chunk("c", update.Added("B", "C")))))
	require.NoError(t, r.Record(partial("b.js", chunk("c", update.Added("X")))))

	got, ok := r.Pending(resource.Resource{Path: "a.js"})
	require.True(t, ok)
	merged := got.Instruction.Merged.Chunks["c"]
	assert.Equal(t, update.KindPartial, merged.Kind)
	assert.Equal(t, []string{"C"}, merged.AddedIDs())
	assert.Equal(t, []string{"A"}, merged.DeletedIDs())

	r.mu.Lock()
	assert.Len(t, r.pending, 2)
	assert.Len(t, r.order, 2)
	r.mu.Unlock()
}

func TestRecord_DoesNotNotify(t *testing.T) {
	r := New(Config{})
	var received []protocol.ServerMessage
	r.Subscribe(context.Background(), resource.Resource{Path: "a.js"}, collect(&received))

	require.NoError(t, r.Record(partial("a.js", chunk("c", update.Added("A")))))
	assert.Empty(t, received)
}

func TestRecord_InvariantViolation(t *testing.T) {
	rec := metrics.NewRecorder()
	r := New(Config{Metrics: rec})

	require.NoError(t, r.Record(partial("a.js", chunk("c", update.Added("A")))))
	err := r.Record(partial("a.js", chunk("c", update.Added("B"))))

	var ie *update.InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "c", ie.Chunk)
}

func TestFlushAll_SameAggregateForAllListeners(t *testing.T) {
	r := New(Config{})
	res := resource.Resource{Path: "a.js"}

	var first, second []protocol.ServerMessage
	r.Subscribe(context.Background(), res, collect(&first))
	r.Subscribe(context.Background(), res, collect(&second))

	require.NoError(t, r.Record(partial("a.js", chunk("c", update.Added("A")))))
	require.NoError(t, r.Record(partial("a.js", chunk("c", update.Partial([]string{"B"}, nil)))))

	n, err := r.FlushAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Same(t, first[0].Instruction, second[0].Instruction)
	assert.Equal(t, []string{"A", "B"}, first[0].Instruction.Merged.Chunks["c"].ModuleIDs())

	assert.False(t, r.HasPending())
	n, err = r.FlushAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushAll_WithoutListeners(t *testing.T) {
	r := New(Config{})
	require.NoError(t, r.Record(partial("a.js", chunk("c", update.Added("A")))))

	n, err := r.FlushAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, r.HasPending())
}

func TestNotify_BypassesPendingTable(t *testing.T) {
	r := New(Config{})
	var received []protocol.ServerMessage
	r.Subscribe(context.Background(), resource.Resource{Path: "a.js"}, collect(&received))

	require.NoError(t, r.Record(partial("a.js", chunk("c", update.Added("A")))))
	require.NoError(t, r.Notify(context.Background(), protocol.ServerMessage{
		Resource: resource.Resource{Path: "a.js"},
		Type:     protocol.TypeRestart,
	}))

	require.Len(t, received, 1)
	assert.Equal(t, protocol.TypeRestart, received[0].Type)
	assert.True(t, r.HasPending())
}

func TestSubscribe_ControlMessagesPerTransition(t *testing.T) {
	out := &recordingOutbound{}
	r := New(Config{Outbound: out})
	res := resource.Resource{Path: "a.js", Headers: map[string]string{"accept": "*/*"}}
	noop := func(context.Context, protocol.ServerMessage) error { return nil }

	unsubA := r.Subscribe(context.Background(), res, noop)
	unsubB := r.Subscribe(context.Background(), resource.Resource{Path: "a.js", Headers: map[string]string{"accept": "*/*"}}, noop)
	assert.Equal(t, []protocol.ClientMessageType{protocol.TypeSubscribe}, out.types())

	unsubA()
	assert.Equal(t, []protocol.ClientMessageType{protocol.TypeSubscribe}, out.types(), "removing one of two listeners sends nothing")

	unsubA()
	unsubB()
	unsubB()
	assert.Equal(t, []protocol.ClientMessageType{protocol.TypeSubscribe, protocol.TypeUnsubscribe}, out.types())
	assert.Equal(t, res, out.sent[1].Resource)
	assert.Empty(t, r.Resources())
}

func TestSubscribe_AfterFullUnsubscribeSubscribesAgain(t *testing.T) {
	out := &recordingOutbound{}
	r := New(Config{Outbound: out})
	res := resource.Resource{Path: "a.js"}
	noop := func(context.Context, protocol.ServerMessage) error { return nil }

	unsub := r.Subscribe(context.Background(), res, noop)
	unsub()
	r.Subscribe(context.Background(), res, noop)

	assert.Equal(t, []protocol.ClientMessageType{
		protocol.TypeSubscribe, protocol.TypeUnsubscribe, protocol.TypeSubscribe,
	}, out.types())
}

func TestSubscribe_SendFailureKeepsRegistration(t *testing.T) {
	out := &recordingOutbound{err: errors.New("not connected")}
	r := New(Config{Outbound: out})

	r.Subscribe(context.Background(), resource.Resource{Path: "a.js"}, func(context.Context, protocol.ServerMessage) error { return nil })
	assert.Len(t, r.Resources(), 1)

	r.Resubscribe(context.Background(), func() { out.setErr(nil) })
	assert.Equal(t, []protocol.ClientMessageType{protocol.TypeSubscribe}, out.types())
}

func TestResubscribe_ConcurrentSubscribeSentOnce(t *testing.T) {
	noop := func(context.Context, protocol.ServerMessage) error { return nil }

	for round := 0; round < 50; round++ {
		out := &recordingOutbound{err: ErrOffline}
		r := New(Config{Outbound: out})

		resources := make([]resource.Resource, 8)
		for n := range resources {
			resources[n] = resource.Resource{Path: fmt.Sprintf("r%d.js", n)}
		}

		var wg sync.WaitGroup
		for _, res := range resources {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.Subscribe(context.Background(), res, noop)
			}()
		}
		r.Resubscribe(context.Background(), func() { out.setErr(nil) })
		wg.Wait()

		for _, res := range resources {
			require.Equal(t, 1, out.countFor(protocol.TypeSubscribe, res), "round %d: %s", round, res)
		}
	}
}

func TestNotFound_ClearsStateWithoutUnsubscribe(t *testing.T) {
	out := &recordingOutbound{}
	rec := metrics.NewRecorder()
	r := New(Config{Outbound: out, Metrics: rec})
	res := resource.Resource{Path: "gone.js"}

	var received []protocol.ServerMessage
	unsub := r.Subscribe(context.Background(), res, collect(&received))
	require.NoError(t, r.Record(partial("gone.js", chunk("c", update.Added("A")))))

	require.NoError(t, r.Notify(context.Background(), protocol.ServerMessage{Resource: res, Type: protocol.TypeNotFound}))

	require.Len(t, received, 1)
	assert.Equal(t, protocol.TypeNotFound, received[0].Type)
	_, pending := r.Pending(res)
	assert.False(t, pending)
	assert.Empty(t, r.Resources())

	unsub()
	assert.Equal(t, []protocol.ClientMessageType{protocol.TypeSubscribe}, out.types(), "no duplicate unsubscribe")
}

func TestDiscardPending(t *testing.T) {
	r := New(Config{})
	require.NoError(t, r.Record(partial("a.js", chunk("c", update.Added("A")))))
	r.DiscardPending()
	assert.False(t, r.HasPending())
}
