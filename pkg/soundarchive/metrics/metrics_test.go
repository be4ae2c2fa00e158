package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

func TestCollector_Events(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.ContentCreated(ctx, &soundarchive.ContentRecord{}))
	require.NoError(t, c.ObjectWritten(ctx, soundarchive.MediaAudio, "audios/a.mp3", 2048))
	require.NoError(t, c.ObjectWritten(ctx, soundarchive.MediaAudio, "audios/b.mp3", 1024))
	require.NoError(t, c.ObjectOrphaned(ctx, "audios/b.mp3", "upload aborted"))
	require.NoError(t, c.URLIssued(ctx, "audios/a.mp3", true, nil))
	require.NoError(t, c.URLIssued(ctx, "audios/b.mp3", false, nil))
	require.NoError(t, c.URLIssued(ctx, "audios/c.mp3", false, errors.New("missing")))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.contentEvents.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.objectsWritten.WithLabelValues("audio")))
	assert.Equal(t, 3072.0, testutil.ToFloat64(c.bytesWritten.WithLabelValues("audio")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.objectsOrphaned))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.urlsIssued.WithLabelValues("public")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.urlsIssued.WithLabelValues("signed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.urlsIssued.WithLabelValues("denied_or_failed")))
}

func TestCollector_Middleware(t *testing.T) {
	c := New()
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/content/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", c.Handler())

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/content/abc", nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/content/{id}", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "sound_archive_http_requests_total"))
}
