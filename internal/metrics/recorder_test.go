package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.FrameReceived(true)
	r.FrameReceived(false)
	r.FrameReceived(false)
	r.MessageHandled("partial")
	r.UpdateMerged()
	r.Flushed(3)
	r.Flushed(0)
	r.InvariantViolation()
	r.ListenerFailure()
	r.Reset()
	r.SetSubscriptions(4)
	r.ControlSent("turbopack-subscribe")
	r.Published("partial")
	r.ConnectionOpened()
	r.ConnectionOpened()
	r.ConnectionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.frames.WithLabelValues("batch")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.frames.WithLabelValues("single")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messages.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.merges))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushes), "empty flushes are not counted")
	assert.Equal(t, 3.0, testutil.ToFloat64(r.flushedUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.invariantViolations))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.listenerFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resets))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.subscriptions))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.controlMessages.WithLabelValues("turbopack-subscribe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.published.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.connections))
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.FrameReceived(true)
		r.MessageHandled("x")
		r.UpdateMerged()
		r.Flushed(1)
		r.InvariantViolation()
		r.ListenerFailure()
		r.Reset()
		r.SetSubscriptions(1)
		r.ControlSent("x")
		r.Reconnect()
		r.Published("x")
		r.ConnectionOpened()
		r.ConnectionClosed()
	})
	assert.Nil(t, r.Registry())
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.Reset()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hotpatch_resets_total 1")

	// Two recorders must not clash on registration.
	assert.NotPanics(t, func() { NewRecorder() })
}
