package net

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

// Session is a client's side of one hub connection. Inbound draw messages
// are reconstructed onto Renderer by the read loop; locally captured messages
// are drawn immediately and sent in capture order.
type Session struct {
	conn     *Conn
	renderer state.Renderer

	remote *state.Reconstructor // owned by the read loop

	// mu guards local and interest. Every send is queued while holding it, so
	// the queue order matches the order the state changed in.
	mu       sync.Mutex
	local    *state.Reconstructor
	interest message.Subscription

	// follow wakes the subscription worker after Follow changed interest.
	follow chan struct{}

	// OnSendError is told about every message that could not be sent.
	OnSendError func(m message.Message, err error)

	log *slog.Logger
}

func NewSession(conn *Conn, renderer state.Renderer, interest message.Subscription) *Session {
	return &Session{
		conn:     conn,
		renderer: state.Synchronized(renderer),
		remote:   state.NewReconstructor(),
		local:    state.NewReconstructor(),
		interest: interest,
		follow:   make(chan struct{}, 1),
		log:      slog.With("component", "session", "remote", conn.RemoteAddr()),
	}
}

// Run declares the session's interest and then processes inbound messages
// until the connection closes or ctx is cancelled. Interest changes made with
// Follow are sent while Run is active.
func (s *Session) Run(ctx context.Context) error {
	sub, err := s.resubscribe(ctx)
	if err != nil {
		return err
	}
	s.log.Info("subscribed", "subscription", sub)
	defer s.remote.Reset()

	g, ctx := errgroup.WithContext(ctx)
	ctx, stop := context.WithCancel(ctx)
	g.Go(func() error {
		defer stop()
		return s.conn.ReadLoop(ctx, s.dispatch, func(err error) {
			s.log.Warn("dropping bad frame", "err", err)
		})
	})
	g.Go(func() error {
		return s.followLoop(ctx)
	})
	return g.Wait()
}

func (s *Session) dispatch(m message.Message) {
	switch m := m.(type) {
	case message.Draw:
		n := s.remote.Dispatch(m.Msg, s.renderer)
		s.log.Debug("applied draw message", "primitives", n, "open_strokes", s.remote.Pending())
	case message.Subscribe:
		s.log.Debug("ignoring subscription from hub", "subscription", m.Subscription)
	}
}

// Interest is the subscription most recently requested.
func (s *Session) Interest() message.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interest
}

// setInterest replaces interest and logs the difference. Callers hold mu.
func (s *Session) setInterest(sub message.Subscription) {
	prev := s.interest
	s.interest = sub
	s.log.Debug("subscription changed", "added", sub.MissingFrom(prev), "removed", prev.MissingFrom(sub))
}

// Subscribe replaces the session's interest and waits until the hub has been
// told. Calls are sent in the order they were made.
func (s *Session) Subscribe(ctx context.Context, sub message.Subscription) error {
	s.mu.Lock()
	s.setInterest(sub)
	res := s.conn.Enqueue(message.NewSubscribe(sub))
	s.mu.Unlock()
	return awaitSubscribe(ctx, res)
}

// Follow replaces the session's interest without blocking. The worker started
// by Run sends the latest interest, skipping values overtaken in between.
func (s *Session) Follow(sub message.Subscription) {
	s.mu.Lock()
	s.setInterest(sub)
	s.mu.Unlock()
	select {
	case s.follow <- struct{}{}:
	default:
	}
}

func (s *Session) followLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.follow:
			if _, err := s.resubscribe(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// resubscribe sends the current interest.
func (s *Session) resubscribe(ctx context.Context) (message.Subscription, error) {
	s.mu.Lock()
	sub := s.interest
	res := s.conn.Enqueue(message.NewSubscribe(sub))
	s.mu.Unlock()
	return sub, awaitSubscribe(ctx, res)
}

func awaitSubscribe(ctx context.Context, res <-chan error) error {
	select {
	case err := <-res:
		if err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit draws locally captured messages and queues them for sending without
// waiting for the network. Failures are reported to OnSendError.
func (s *Session) Submit(msgs []message.Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	results := make([]<-chan error, len(msgs))
	for i, m := range msgs {
		if d, ok := m.(message.Draw); ok {
			s.local.Dispatch(d.Msg, s.renderer)
		}
		// Queued under mu so concurrent Submit calls cannot interleave a stroke.
		results[i] = s.conn.Enqueue(m)
	}
	s.mu.Unlock()

	go func() {
		for i, res := range results {
			if err := <-res; err != nil {
				s.log.Error("send failed", "err", err)
				if s.OnSendError != nil {
					s.OnSendError(msgs[i], err)
				}
			}
		}
	}()
}

// SendAll sends msgs in order, waiting for each, and stops at the first error.
func (s *Session) SendAll(ctx context.Context, msgs []message.Message) error {
	for _, m := range msgs {
		if err := s.conn.Send(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) Close() error {
	return s.conn.Close()
}
