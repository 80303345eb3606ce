package net

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

// peer is one connected client as seen by the hub.
type peer struct {
	id   string
	conn *Conn
	sub  message.Subscription

	// strokes tracks the open incremental strokes this peer is sending.
	strokes *state.Reconstructor
	// sticky records which peers already receive each open stroke.
	sticky map[message.PathID]map[*peer]struct{}
}

// Hub relays draw messages between peers. Each peer only receives what
// touches a chunk in its latest subscription. A primitive touches the chunks
// of its padded bounding box; for a long line only the chunks its centerline
// crosses count, up to state.MaxWalk of them.
type Hub struct {
	chunkSize float32

	mu    sync.Mutex // protects peers and every peer's routing state
	peers map[*peer]struct{}

	log *slog.Logger
}

func NewHub(chunkSize float32) *Hub {
	return &Hub{
		chunkSize: chunkSize,
		peers:     make(map[*peer]struct{}),
		log:       slog.With("component", "hub"),
	}
}

// Peers is the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *Hub) add(conn *Conn) *peer {
	p := &peer{
		id:      conn.RemoteAddr(),
		conn:    conn,
		sub:     message.EmptySubscription(),
		strokes: state.NewReconstructor(),
		sticky:  make(map[message.PathID]map[*peer]struct{}),
	}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	h.log.Info("peer connected", "peer", p.id, "peers", n)
	return p
}

// remove drops p and ends, for everyone still listening, the strokes p left open.
func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	for id, recipients := range p.sticky {
		for r := range recipients {
			h.deliver(r, []message.DrawMessage{message.PathStepEnd{ID: id}})
		}
	}
	p.sticky = nil
	p.strokes.Reset()
	for q := range h.peers {
		for _, recipients := range q.sticky {
			delete(recipients, p)
		}
	}
	n := len(h.peers)
	h.mu.Unlock()
	_ = p.conn.Close()
	h.log.Info("peer disconnected", "peer", p.id, "peers", n)
}

// Serve runs one peer until its connection ends.
func (h *Hub) Serve(ctx context.Context, conn *Conn) error {
	p := h.add(conn)
	defer h.remove(p)
	return conn.ReadLoop(ctx, func(m message.Message) {
		h.handle(p, m)
	}, func(err error) {
		h.log.Warn("dropping bad frame", "peer", p.id, "err", err)
	})
}

func (h *Hub) handle(from *peer, m message.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch m := m.(type) {
	case message.Subscribe:
		from.sub = m.Subscription
		h.log.Debug("subscription replaced", "peer", from.id, "subscription", m.Subscription)
	case message.Draw:
		out := make(map[*peer][]message.DrawMessage)
		h.route(from, m.Msg, out)
		for to, msgs := range out {
			h.deliver(to, msgs)
		}
	}
}

// deliver sends msgs to p as one message, batching several into a Composite.
func (h *Hub) deliver(p *peer, msgs []message.DrawMessage) {
	if _, ok := h.peers[p]; !ok || len(msgs) == 0 {
		return
	}
	var dm message.DrawMessage = message.Composite{Messages: msgs}
	if len(msgs) == 1 {
		dm = msgs[0]
	}
	if err := p.conn.TrySend(message.NewDraw(dm)); err != nil {
		h.log.Warn("dropping slow peer", "peer", p.id, "err", err)
		delete(h.peers, p)
		go p.conn.Close()
	}
}

func (h *Hub) others(from *peer) []*peer {
	out := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		if p != from {
			out = append(out, p)
		}
	}
	return out
}

func (h *Hub) route(from *peer, dm message.DrawMessage, out map[*peer][]message.DrawMessage) {
	switch m := dm.(type) {
	case message.Composite:
		for _, sub := range m.Messages {
			h.route(from, sub, out)
		}
	case message.Path:
		chunks := state.Coverage(from.strokes.Apply(m), h.chunkSize)
		for _, pt := range m.Points {
			chunks = append(chunks, message.ToChunk(pt, h.chunkSize))
		}
		h.fanOut(from, m, chunks, out)
	case message.Line:
		h.fanOut(from, m, state.PrimitiveChunks(m, h.chunkSize), out)
	case message.Dot:
		h.fanOut(from, m, state.PrimitiveChunks(m, h.chunkSize), out)
	case message.PathStepDraw:
		h.routeStep(from, m, out)
	case message.PathStepEnd:
		from.strokes.Apply(m)
		for to := range from.sticky[m.ID] {
			out[to] = append(out[to], m)
		}
		delete(from.sticky, m.ID)
	}
}

func (h *Hub) fanOut(from *peer, m message.DrawMessage, chunks []message.ChunkCoordinates, out map[*peer][]message.DrawMessage) {
	for _, to := range h.others(from) {
		if to.sub.Intersects(chunks) {
			out[to] = append(out[to], m)
		}
	}
}

// routeStep forwards a stroke step. Once a peer receives a stroke it keeps
// receiving it until the stroke ends. A peer joining mid-stroke first gets
// the previous point as an anchor so the entering segment is drawn.
func (h *Hub) routeStep(from *peer, m message.PathStepDraw, out map[*peer][]message.DrawMessage) {
	prev, hadPrev := from.strokes.Anchor(m.ID)
	from.strokes.Apply(m)

	chunks := []message.ChunkCoordinates{message.ToChunk(m.Point, h.chunkSize)}
	if hadPrev {
		chunks = state.PrimitiveChunks(message.Line{From: prev, To: m.Point, Width: m.Width, Color: m.Color}, h.chunkSize)
	}

	recipients := from.sticky[m.ID]
	for _, to := range h.others(from) {
		if _, ok := recipients[to]; ok {
			out[to] = append(out[to], m)
			continue
		}
		if !to.sub.Intersects(chunks) {
			continue
		}
		if recipients == nil {
			recipients = make(map[*peer]struct{})
			from.sticky[m.ID] = recipients
		}
		recipients[to] = struct{}{}
		if hadPrev {
			anchor := m
			anchor.Point = prev
			out[to] = append(out[to], anchor)
		}
		out[to] = append(out[to], m)
	}
}

// Router serves the WebSocket endpoint and a health check.
func (h *Hub) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			h.log.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(h.serveWS)
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "ok %d peers\n", h.Peers())
	})
	return r
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := Upgrade(w, r)
	if err != nil {
		h.log.Error("upgrade failed", "err", err)
		return
	}
	if err := h.Serve(r.Context(), conn); err != nil {
		h.log.Warn("peer connection failed", "peer", conn.RemoteAddr(), "err", err)
	}
}

// ListenAndServe runs the hub on addr until ctx is cancelled.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Router()}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("hub listen failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.closeAll()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.peers))
	for p := range h.peers {
		conns = append(conns, p.conn)
	}
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}
