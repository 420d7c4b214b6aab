package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ivugurura/edicast/internal/relay"
	"github.com/ivugurura/edicast/internal/rendezvous"
	"github.com/ivugurura/edicast/internal/source"
)

// sourceMethod is the legacy Icecast SOURCE method; net/http has no
// constant for it since it is not one of the standard verbs.
const sourceMethod = "SOURCE"

// reserver is the subset of *relay.Relay the control handler needs.
type reserver interface {
	ReserveSource(name string) (*rendezvous.Reservation[*source.Session], error)
}

// ControlHandler serves SOURCE/PUT requests on the broadcaster-facing
// endpoint: method/path/content-type dispatch, admission reservation,
// decoder construction, and handoff commit.
//
// Unlike original_source/src/server/control.rs, where dispatch returns
// immediately after commit and the decoder read loop continues on whatever
// runtime owns the socket, ServeHTTP here blocks until the session ends:
// net/http requires the handler goroutine to own the request body for as
// long as it's being read, so the HTTP connection passing to the decoder
// read loop is realized by the Source worker reading through the decoder
// while this handler waits on the session's completion signal, matching
// HandleLiveIngest's own shape (one handler goroutine blocked for the
// inbound stream's duration).
type ControlHandler struct {
	relay  reserver
	prefix string
	log    *slog.Logger
}

// NewControlHandler constructs a ControlHandler. prefix is the path prefix
// source names are matched under, e.g. "/source/".
func NewControlHandler(r reserver, prefix string, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{relay: r, prefix: prefix, log: logger.With("endpoint", "control")}
}

func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, h.prefix) {
		http.NotFound(w, r)
		return
	}

	if r.Method != sourceMethod && r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	encodedName := strings.TrimPrefix(r.URL.Path, h.prefix)
	name, err := url.PathUnescape(encodedName)
	if err != nil || !utf8.ValidString(name) {
		http.NotFound(w, r)
		return
	}

	contentType := mediaType(r.Header.Get("Content-Type"))
	if !relay.MimeTypeFor(contentType) {
		http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
		return
	}

	reservation, err := h.relay.ReserveSource(name)
	if err != nil {
		switch {
		case errors.Is(err, source.ErrNoSuchSource):
			http.NotFound(w, r)
		case errors.Is(err, rendezvous.ErrBusy):
			http.Error(w, "source already connected", http.StatusConflict)
		default:
			http.Error(w, "could not connect", http.StatusInternalServerError)
		}
		return
	}

	conn, bodyReader, err := acquireConnection(w, r)
	if err != nil {
		reservation.Abort()
		h.log.Error("could not acquire broadcaster connection", "source", name, "error", err)
		return
	}

	decoder, err := relay.NewDecoder(contentType, bodyReader)
	if err != nil {
		reservation.Abort()
		conn.Close()
		h.log.Error("decoder construction failed", "source", name, "error", err)
		return
	}

	h.log.Info("broadcaster connected", "source", name, "content_type", contentType)

	done := make(chan error, 1)
	commitErr := reservation.Commit(&source.Session{
		Decoder: decoder,
		Done:    func(sessErr error) { done <- sessErr },
	})
	if commitErr != nil {
		// ErrDisconnected: the source worker is required to be alive for
		// the process lifetime, so this is a programmer error, not a
		// request the client can retry its way out of.
		conn.Close()
		h.log.Error("commit failed", "source", name, "error", commitErr)
		return
	}

	sessErr := <-done
	conn.Close()
	if sessErr != nil {
		h.log.Info("broadcaster session ended", "source", name, "error", sessErr)
	} else {
		h.log.Info("broadcaster session ended", "source", name)
	}
}

// acquireConnection returns the closable connection and the byte reader
// audio is decoded from, branching on method: SOURCE hijacks the
// connection and writes an icecast protocol-switch response line by hand
// (the legacy method, matching internal/stream/studio.go's era of
// BUTT-style encoders); PUT uses the response writer normally and reads the
// request body directly, relying on the server's automatic 100-continue.
func acquireConnection(w http.ResponseWriter, r *http.Request) (io.Closer, io.Reader, error) {
	if r.Method != sourceMethod {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		return r.Body, r.Body, nil
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("httpapi: ResponseWriter does not support hijacking")
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		return nil, nil, err
	}
	if _, err := buf.WriteString("ICY 200 OK\r\n\r\n"); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := buf.Flush(); err != nil {
		conn.Close()
		return nil, nil, err
	}
	// buf.Reader may already hold bytes read past the request line/headers
	// during the hijack; reading through it (not a fresh bufio.Reader over
	// conn) keeps those bytes instead of silently dropping them.
	return conn, buf.Reader, nil
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	t, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// fall back to a bare split on ';' for inputs mime.ParseMediaType
		// rejects outright but that are still unambiguous, e.g. a trailing
		// stray semicolon.
		t = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return t
}
