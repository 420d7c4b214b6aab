// Package httpapi implements the two network-facing HTTP surfaces: the
// public (listener) endpoint and the control (broadcaster) endpoint.
//
// Grounded on internal/stream/studio.go's HandleListen/HandleLiveIngest
// (header setting, Flusher-driven streaming, hijack-for-legacy-protocol
// branch) and original_source/src/server/{public,control}.rs for the exact
// routing/status-code state machine.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ivugurura/edicast/internal/broadcast"
	"github.com/ivugurura/edicast/internal/geo"
	"github.com/ivugurura/edicast/internal/listeners"
	"github.com/ivugurura/edicast/internal/netutil"
)

// streamLookup is the subset of *relay.Relay the public handler needs,
// kept as an interface so tests can supply a fake routing table.
type streamLookup interface {
	LookupStream(path string) (subs *broadcast.SubscriberFactory[[]byte], mime string, ok bool)
}

// PublicHandler serves GET requests on the listener-facing endpoint: path
// lookup, subscribe, stream encoded chunks until the client disconnects or
// the stream's broadcast closes. A listener that falls behind misses the
// chunks dropped for it on a full queue; lag does not end its stream.
type PublicHandler struct {
	relay streamLookup
	store *listeners.Store
	geo   *geo.Resolver
	log   *slog.Logger
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(r streamLookup, store *listeners.Store, resolver *geo.Resolver, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{relay: r, store: store, geo: resolver, log: logger.With("endpoint", "public")}
}

func (h *PublicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	subs, mime, ok := h.relay.LookupStream(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	rx, err := subs.Subscribe()
	if err != nil {
		// publisher gone: treated the same as an unknown path.
		http.NotFound(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	listener := &listeners.Listener{
		ID:          uuid.NewString(),
		StreamName:  pathToStreamName(r.URL.Path),
		ConnectedAt: time.Now(),
		RemoteIP:    netutil.ExtractClientIp(r),
		UserAgent:   r.UserAgent(),
		ClientType:  netutil.ClassifyUserAgent(r.UserAgent()),
	}
	if h.store != nil {
		h.store.Add(listener)
	}
	if h.geo != nil {
		// enrichment never blocks the write loop below; it mutates the
		// listener's geo fields in place once it finishes.
		go func() {
			h.geo.Enrich(listener)
			if h.store != nil {
				h.store.NotifyEnriched(listener)
			}
		}()
	}

	h.log.Info("listener connected", "path", r.URL.Path, "listener", listener.ID)
	defer func() {
		listener.MarkDisconnected()
		if h.store != nil {
			h.store.Remove(listener.ID)
		}
		rx.Close()
		h.log.Info("listener disconnected", "path", r.URL.Path, "listener", listener.ID)
	}()

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		chunk, err := rx.Recv(r.Context())
		if err != nil {
			if !errors.Is(err, broadcast.ErrClosed) {
				h.log.Info("listener stream ended", "listener", listener.ID, "error", err)
			}
			return
		}
		if len(chunk) == 0 {
			continue
		}
		if _, err := w.Write(chunk); err != nil {
			return
		}
		flusher.Flush()
		listener.ByteSent.Add(int64(len(chunk)))
	}
}

func pathToStreamName(path string) string {
	return path
}
