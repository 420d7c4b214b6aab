package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendListenerBatchWithNoURLIsNoop(t *testing.T) {
	c := NewClient("", "")
	if err := c.SendListenerBatch(context.Background(), IngestListenerBatch{StreamName: "/main.mp3"}); err != nil {
		t.Fatalf("expected no error with an empty URL, got %v", err)
	}
}

func TestSendListenerBatchSetsAuthHeader(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key")
	if err := c.SendListenerBatch(context.Background(), IngestListenerBatch{StreamName: "/main.mp3"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content-type: %q", gotContentType)
	}
}

func TestSendListenerBatchPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.SendListenerBatch(context.Background(), IngestListenerBatch{}); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
