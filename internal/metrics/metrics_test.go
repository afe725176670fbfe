package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.Refresh("ok", time.Second)
	r.Refresh("failed", time.Millisecond)
	r.Refresh("ok", time.Millisecond)
	r.Mutation("staff", "upsert", nil)
	r.Mutation("staff", "upsert", errors.New("down"))
	r.Attachment("hit")
	r.Notification()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.refreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.refreshes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.mutations.WithLabelValues("staff", "upsert", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.attachments.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.notifications))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Refresh("ok", time.Second)
		r.Mutation("staff", "delete", nil)
		r.Attachment("miss")
		r.Notification()
	})
}

func TestHandler_ServesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).Notification()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "maharat_change_notifications_total 1")
}
