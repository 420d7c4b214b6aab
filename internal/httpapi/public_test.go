package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ivugurura/edicast/internal/broadcast"
)

type fakeRoutes struct {
	subs *broadcast.SubscriberFactory[[]byte]
	mime string
	path string
}

func (f *fakeRoutes) LookupStream(path string) (*broadcast.SubscriberFactory[[]byte], string, bool) {
	if path != f.path {
		return nil, "", false
	}
	return f.subs, f.mime, true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublicHandlerUnknownPathIs404(t *testing.T) {
	pub, subs := broadcast.New[[]byte](4)
	defer pub.Close()
	h := NewPublicHandler(&fakeRoutes{subs: subs, mime: "audio/mpeg", path: "/live.mp3"}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/missing.mp3", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPublicHandlerStreamsPublishedChunks(t *testing.T) {
	pub, subs := broadcast.New[[]byte](4)
	defer pub.Close()
	h := NewPublicHandler(&fakeRoutes{subs: subs, mime: "audio/mpeg", path: "/live.mp3"}, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/live.mp3", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(done)
	}()

	// give the handler time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	pub.Publish([]byte("chunk-one"))
	time.Sleep(50 * time.Millisecond)
	pub.Close()

	<-done

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("unexpected content-type: %s", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != "chunk-one" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}
