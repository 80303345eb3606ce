package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

func startHub(t *testing.T, chunkSize float32) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(chunkSize)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return h, srv
}

// waitForPeers blocks until the hub sees want peers whose subscriptions
// satisfy ok.
func waitForPeers(t *testing.T, h *Hub, want int, ok func(subs []message.Subscription) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		if len(h.peers) != want {
			return false
		}
		subs := make([]message.Subscription, 0, len(h.peers))
		for p := range h.peers {
			subs = append(subs, p.sub)
		}
		return ok(subs)
	}, 5*time.Second, 10*time.Millisecond)
}

func subscribedTo(subs []message.Subscription, c message.ChunkCoordinates) int {
	n := 0
	for _, s := range subs {
		if s.Contains(c) {
			n++
		}
	}
	return n
}

func send(t *testing.T, c *Conn, m message.Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Send(ctx, m))
}

func TestHubFiltersBySubscription(t *testing.T) {
	h, srv := startHub(t, 10)
	a, b, c := dial(t, srv), dial(t, srv), dial(t, srv)
	send(t, b, message.NewSubscribe(message.SubscriptionOf(message.Chunk(0, 0))))
	send(t, c, message.NewSubscribe(message.SubscriptionOf(message.Chunk(5, 5))))
	waitForPeers(t, h, 3, func(subs []message.Subscription) bool {
		return subscribedTo(subs, message.Chunk(0, 0)) == 1 && subscribedTo(subs, message.Chunk(5, 5)) == 1
	})

	near := line(1, 1, 2, 2)
	far := message.Dot{Center: message.Pt(55, 55), Diameter: 1, Color: black}
	send(t, a, message.NewDraw(near))
	send(t, a, message.NewDraw(far))

	// Messages arrive in order, so C's first message proves it never got the line.
	assert.Equal(t, message.DrawMessage(near), drawOf(t, receive(t, b)))
	assert.Equal(t, message.DrawMessage(far), drawOf(t, receive(t, c)))
}

func TestHubRoutesLongLineThroughMiddleChunk(t *testing.T) {
	h, srv := startHub(t, 10)
	a, b := dial(t, srv), dial(t, srv)
	send(t, b, message.NewSubscribe(message.SubscriptionOf(message.Chunk(250, 250))))
	waitForPeers(t, h, 2, func(subs []message.Subscription) bool {
		return subscribedTo(subs, message.Chunk(250, 250)) == 1
	})

	long := message.Line{From: message.Pt(0, 3), To: message.Pt(5000, 5003), Width: 1, Color: black}
	send(t, a, message.NewDraw(long))
	assert.Equal(t, message.DrawMessage(long), drawOf(t, receive(t, b)))
}

func TestHubReplacesSubscription(t *testing.T) {
	h, srv := startHub(t, 10)
	a, c := dial(t, srv), dial(t, srv)
	send(t, c, message.NewSubscribe(message.SubscriptionOf(message.Chunk(0, 0))))
	send(t, c, message.NewSubscribe(message.SubscriptionOf(message.Chunk(5, 5))))
	waitForPeers(t, h, 2, func(subs []message.Subscription) bool {
		return subscribedTo(subs, message.Chunk(5, 5)) == 1 && subscribedTo(subs, message.Chunk(0, 0)) == 0
	})

	send(t, a, message.NewDraw(line(1, 1, 2, 2)))
	far := message.Dot{Center: message.Pt(55, 55), Diameter: 1, Color: black}
	send(t, a, message.NewDraw(far))
	assert.Equal(t, message.DrawMessage(far), drawOf(t, receive(t, c)))
}

func TestHubNeverEchoes(t *testing.T) {
	h, srv := startHub(t, 10)
	a, b := dial(t, srv), dial(t, srv)
	everywhere := message.SubscriptionAround(message.Chunk(0, 0), 2)
	send(t, a, message.NewSubscribe(everywhere))
	send(t, b, message.NewSubscribe(everywhere))
	waitForPeers(t, h, 2, func(subs []message.Subscription) bool {
		return subscribedTo(subs, message.Chunk(0, 0)) == 2
	})

	send(t, a, message.NewDraw(line(1, 1, 2, 2)))
	sentinel := message.Dot{Center: message.Pt(3, 3), Diameter: 1, Color: black}
	send(t, b, message.NewDraw(sentinel))
	assert.Equal(t, message.DrawMessage(sentinel), drawOf(t, receive(t, a)))
	assert.Equal(t, message.DrawMessage(line(1, 1, 2, 2)), drawOf(t, receive(t, b)))
}

func TestHubAnchorsStrokeEnteringSubscription(t *testing.T) {
	h, srv := startHub(t, 10)
	a, b := dial(t, srv), dial(t, srv)
	send(t, b, message.NewSubscribe(message.SubscriptionOf(message.Chunk(1, 0))))
	waitForPeers(t, h, 2, func(subs []message.Subscription) bool {
		return subscribedTo(subs, message.Chunk(1, 0)) == 1
	})

	capture := &state.StreamCapture{Color: black, IDs: &state.SequenceSource{Site: 1}}
	var msgs []message.Message
	for _, x := range []float32{1, 5, 15, 25} {
		msgs = append(msgs, capture.Sample(message.Pt(x, 1), 1)...)
	}
	msgs = append(msgs, capture.End()...)
	for _, m := range msgs {
		send(t, a, m)
	}

	r := state.NewReconstructor()
	var rec state.Recorder
	for r.Pending() > 0 || len(rec.Primitives) == 0 {
		r.Dispatch(drawOf(t, receive(t, b)), &rec)
	}
	assert.Equal(t, []message.Line{
		{From: message.Pt(5, 1), To: message.Pt(15, 1), Width: 1, Color: black},
		{From: message.Pt(15, 1), To: message.Pt(25, 1), Width: 1, Color: black},
	}, rec.Lines())
	assert.Zero(t, r.Pending())
}

func TestHubEndsStrokesOfDisconnectedPeer(t *testing.T) {
	h, srv := startHub(t, 10)
	a, b := dial(t, srv), dial(t, srv)
	send(t, b, message.NewSubscribe(message.SubscriptionOf(message.Chunk(0, 0))))
	waitForPeers(t, h, 2, func(subs []message.Subscription) bool {
		return subscribedTo(subs, message.Chunk(0, 0)) == 1
	})

	capture := &state.StreamCapture{Color: black, IDs: &state.SequenceSource{Site: 2}}
	for _, x := range []float32{1, 2} {
		for _, m := range capture.Sample(message.Pt(x, 1), 1) {
			send(t, a, m)
		}
	}
	id, ok := capture.Current()
	require.True(t, ok)
	require.NoError(t, a.Close())

	var got []message.DrawMessage
	for len(got) < 3 {
		got = append(got, drawOf(t, receive(t, b)))
	}
	assert.IsType(t, message.PathStepDraw{}, got[0])
	assert.IsType(t, message.PathStepDraw{}, got[1])
	assert.Equal(t, message.DrawMessage(message.PathStepEnd{ID: id}), got[2])

	require.Eventually(t, func() bool { return h.Peers() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestHealthz(t *testing.T) {
	_, srv := startHub(t, 10)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok 0 peers\n", string(body))
}

type channelRenderer struct {
	lines chan message.Line
}

func (c channelRenderer) DrawLine(l message.Line) { c.lines <- l }
func (c channelRenderer) DrawDot(message.Dot)     {}
func (c channelRenderer) Refresh()                {}

func TestSessionsShareStrokes(t *testing.T) {
	h, srv := startHub(t, 10)
	interest := message.SubscriptionAround(message.Chunk(0, 0), 1)

	var local state.Recorder
	sender := NewSession(dial(t, srv), &local, interest)
	remote := channelRenderer{lines: make(chan message.Line, 16)}
	receiver := NewSession(dial(t, srv), remote, interest)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sender.Run(ctx) }()
	go func() { _ = receiver.Run(ctx) }()
	waitForPeers(t, h, 2, func(subs []message.Subscription) bool {
		return subscribedTo(subs, message.Chunk(0, 0)) == 2
	})

	capture := &state.StreamCapture{Color: black, IDs: &state.SequenceSource{Site: 3}}
	sender.Submit(capture.Sample(message.Pt(1, 1), 2))
	sender.Submit(capture.Sample(message.Pt(4, 1), 2))
	sender.Submit(capture.Sample(message.Pt(4, 6), 2))
	sender.Submit(capture.End())

	want := []message.Line{
		{From: message.Pt(1, 1), To: message.Pt(4, 1), Width: 2, Color: black},
		{From: message.Pt(4, 1), To: message.Pt(4, 6), Width: 2, Color: black},
	}
	assert.Equal(t, want, local.Lines())
	for _, w := range want {
		select {
		case l := <-remote.lines:
			assert.Equal(t, w, l)
		case <-time.After(5 * time.Second):
			t.Fatal("receiver never drew the stroke")
		}
	}

	batch := &state.BatchCapture{Width: 1, Color: black}
	batch.Sample(message.Pt(0, 9), 0)
	batch.Sample(message.Pt(9, 9), 0)
	require.NoError(t, sender.SendAll(ctx, batch.End()))
	select {
	case l := <-remote.lines:
		assert.Equal(t, message.Line{From: message.Pt(0, 9), To: message.Pt(9, 9), Width: 1, Color: black}, l)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never drew the batched path")
	}
}

func TestSessionFollowKeepsLatestView(t *testing.T) {
	h, srv := startHub(t, 10)
	session := NewSession(dial(t, srv), channelRenderer{lines: make(chan message.Line, 16)}, message.EmptySubscription())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = session.Run(ctx) }()

	latest := message.SubscriptionOf(message.Chunk(29, 0))
	for i := range 30 {
		session.Follow(message.SubscriptionOf(message.Chunk(int32(i), 0)))
	}
	holdsLatest := func(subs []message.Subscription) bool {
		return len(subs) == 1 && subs[0].Equal(latest)
	}
	waitForPeers(t, h, 1, holdsLatest)
	assert.Never(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		for p := range h.peers {
			if !p.sub.Equal(latest) {
				return true
			}
		}
		return false
	}, 200*time.Millisecond, 10*time.Millisecond)
	assert.True(t, session.Interest().Equal(latest))
}

func TestSessionSubscribeKeepsCallOrder(t *testing.T) {
	h, srv := startHub(t, 10)
	session := NewSession(dial(t, srv), channelRenderer{lines: make(chan message.Line, 16)}, message.EmptySubscription())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := range 30 {
		require.NoError(t, session.Subscribe(ctx, message.SubscriptionOf(message.Chunk(int32(i), 0))))
	}
	latest := message.SubscriptionOf(message.Chunk(29, 0))
	waitForPeers(t, h, 1, func(subs []message.Subscription) bool {
		return len(subs) == 1 && subs[0].Equal(latest)
	})
}
