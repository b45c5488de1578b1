// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paracord-chat/fedcheck/lib/clock"
	"github.com/paracord-chat/fedcheck/lib/netutil"
	"github.com/paracord-chat/fedcheck/lib/transcript"
)

const (
	defaultHelloTimeout = 12 * time.Second
	defaultReadyTimeout = 25 * time.Second
	writeTimeout        = 10 * time.Second
	inboundBuffer       = 64
)

// Config configures Dial.
type Config struct {
	// Name identifies the session in logs, errors, and transcripts,
	// e.g. "a/admin".
	Name string

	// URL is the gateway websocket URL, e.g. "ws://127.0.0.1:18081/gateway".
	URL string

	// Token is the bearer token sent in IDENTIFY.
	Token string

	// Origin, when set, is sent as the Origin header on the upgrade
	// request. Paracord rejects browser-less upgrades without one.
	Origin string

	// HelloTimeout bounds the wait for HELLO. Defaults to 12s.
	HelloTimeout time.Duration

	// ReadyTimeout bounds the wait for READY after IDENTIFY. Defaults
	// to 25s.
	ReadyTimeout time.Duration

	Keepalive KeepaliveMode

	// TranscriptDir, when set, receives a transcript of every dispatch
	// the session observes.
	TranscriptDir string

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	Clock  clock.Clock
	Logger *slog.Logger
}

// inbound is one frame forwarded by the reader goroutine.
type inbound struct {
	frame frame
	err   error
}

// Session is one gateway connection.
type Session struct {
	name   string
	url    string
	conn   *websocket.Conn
	clock  clock.Clock
	logger *slog.Logger
	mode   KeepaliveMode

	writeMu   sync.Mutex
	keepalive keepalive

	inbound    chan inbound
	readerDone chan struct{}
	readErr    error // written by the reader before closing inbound

	closeOnce sync.Once
	closed    chan struct{}
	waitGroup sync.WaitGroup

	transcript *transcript.Writer

	// Owned by the Await caller.
	backlog backlog
}

// Dial connects, performs the handshake, and returns a ready Session.
func Dial(ctx context.Context, config Config) (*Session, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("gateway: URL is required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("gateway: Token is required")
	}
	if config.Name == "" {
		config.Name = config.URL
	}
	if config.HelloTimeout <= 0 {
		config.HelloTimeout = defaultHelloTimeout
	}
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = defaultReadyTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	dialer := config.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	if config.Origin != "" {
		header.Set("Origin", config.Origin)
	}
	dialContext, cancel := context.WithTimeout(ctx, config.HelloTimeout)
	conn, response, err := dialer.DialContext(dialContext, config.URL, header)
	cancel()
	if err != nil {
		reason := "dial failed"
		if response != nil {
			reason = fmt.Sprintf("upgrade rejected with HTTP %d", response.StatusCode)
		}
		return nil, &HandshakeError{URL: config.URL, Stage: "connect", Reason: reason, Err: err}
	}

	session := &Session{
		name:       config.Name,
		url:        config.URL,
		conn:       conn,
		clock:      config.Clock,
		logger:     config.Logger.With("session", config.Name),
		mode:       config.Keepalive,
		inbound:    make(chan inbound, inboundBuffer),
		readerDone: make(chan struct{}),
		closed:     make(chan struct{}),
	}
	go session.readLoop()

	if config.TranscriptDir != "" {
		writer, err := transcript.Create(config.TranscriptDir, transcriptName(config.Name))
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("gateway: %s: %w", config.Name, err)
		}
		session.transcript = writer
	}

	if err := session.handshake(ctx, config); err != nil {
		session.Close()
		return nil, err
	}

	if session.mode == KeepaliveBackground {
		session.waitGroup.Add(1)
		go session.keepaliveLoop()
	}
	return session, nil
}

func (s *Session) handshake(ctx context.Context, config Config) error {
	timer := s.clock.NewTimer(config.HelloTimeout)
	defer timer.Stop()

	var hello frame
	select {
	case item, ok := <-s.inbound:
		if !ok {
			return &HandshakeError{URL: s.url, Stage: "hello", Reason: "connection closed before HELLO", Err: s.readErr}
		}
		if item.err != nil {
			return &HandshakeError{URL: s.url, Stage: "hello", Reason: "malformed greeting", Err: item.err}
		}
		hello = item.frame
	case <-timer.C:
		return &HandshakeError{URL: s.url, Stage: "hello", Reason: fmt.Sprintf("no HELLO within %s", config.HelloTimeout)}
	case <-ctx.Done():
		return &HandshakeError{URL: s.url, Stage: "hello", Reason: "cancelled", Err: ctx.Err()}
	}
	if hello.Op != OpHello {
		return &HandshakeError{URL: s.url, Stage: "hello", Reason: fmt.Sprintf("expected HELLO (op %d), got op %d", OpHello, hello.Op)}
	}

	interval, err := helloInterval(hello.Data)
	if err != nil {
		return &HandshakeError{URL: s.url, Stage: "hello", Reason: "malformed heartbeat_interval", Err: err}
	}
	s.keepalive.interval = interval
	s.keepalive.last = s.clock.Now()

	if err := s.write(outgoing{Op: OpIdentify, Data: identifyData{Token: config.Token}}); err != nil {
		return &HandshakeError{URL: s.url, Stage: "identify", Reason: "sending IDENTIFY", Err: err}
	}

	if _, err := s.Await(ctx, EventReady, nil, config.ReadyTimeout); err != nil {
		return &HandshakeError{URL: s.url, Stage: "ready", Reason: "no READY dispatch", Err: err}
	}

	s.logger.Debug("gateway session ready",
		"url", s.url,
		"heartbeat_interval", s.keepalive.interval,
		"keepalive", s.mode,
	)
	return nil
}

// Await returns the first dispatch of eventType matching predicate,
// consuming it. The backlog is searched first, oldest to newest; then
// the session receives for up to timeout, holding back every dispatch
// that does not match.
func (s *Session) Await(ctx context.Context, eventType string, predicate Predicate, timeout time.Duration) (Dispatch, error) {
	if s.mode == KeepalivePiggyback {
		s.heartbeat(s.clock.Now())
	}
	if dispatch, ok := s.backlog.take(eventType, predicate); ok {
		return dispatch, nil
	}

	start := s.clock.Now()
	deadline := start.Add(timeout)
	var seen recentTypes
	for {
		now := s.clock.Now()
		if s.mode == KeepalivePiggyback {
			s.heartbeat(now)
		}
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			return Dispatch{}, &TimeoutError{
				Session:   s.name,
				EventType: eventType,
				Waited:    now.Sub(start),
				Seen:      seen.list(),
				Backlog:   s.backlog.len(),
			}
		}

		wait := remaining
		if s.mode == KeepalivePiggyback {
			wait = min(wait, max(s.keepalive.untilDue(now), time.Millisecond))
		}

		timer := s.clock.NewTimer(wait)
		select {
		case item, ok := <-s.inbound:
			timer.Stop()
			if !ok {
				return Dispatch{}, s.disconnected()
			}
			if item.err != nil {
				s.logger.Warn("dropping malformed gateway frame", "error", item.err)
				continue
			}
			dispatch, isDispatch := s.handleFrame(item.frame)
			if !isDispatch {
				continue
			}
			seen.add(dispatch.Type)
			if matches(dispatch, eventType, predicate) {
				s.record(dispatch, true)
				return dispatch, nil
			}
			s.record(dispatch, false)
			s.backlog.push(dispatch)
		case <-timer.C:
		case <-s.closed:
			timer.Stop()
			return Dispatch{}, ErrClosed
		case <-ctx.Done():
			timer.Stop()
			return Dispatch{}, fmt.Errorf("gateway: %s: waiting for %s: %w", s.name, eventType, ctx.Err())
		}
	}
}

// handleFrame processes control frames and converts DISPATCH frames.
func (s *Session) handleFrame(f frame) (Dispatch, bool) {
	switch f.Op {
	case OpDispatch:
		return newDispatch(f, s.clock.Now()), true
	case OpHeartbeat:
		// The server may request an immediate heartbeat.
		if err := s.write(outgoing{Op: OpHeartbeat}); err != nil {
			s.logger.Warn("answering heartbeat request failed", "error", err)
		}
	case OpHeartbeatAck:
		s.logger.Debug("heartbeat acknowledged")
	default:
		s.logger.Debug("ignoring gateway frame", "op", f.Op)
	}
	return Dispatch{}, false
}

// heartbeat sends a heartbeat if one is due. Send failures are logged;
// a broken connection surfaces through the reader.
func (s *Session) heartbeat(now time.Time) {
	_, err := s.keepalive.beatIfDue(now, func() error {
		return s.write(outgoing{Op: OpHeartbeat})
	})
	if err != nil {
		s.logger.Warn("sending heartbeat failed", "error", err)
	}
}

func (s *Session) keepaliveLoop() {
	defer s.waitGroup.Done()
	for {
		timer := s.clock.NewTimer(max(s.keepalive.untilDue(s.clock.Now()), time.Millisecond))
		select {
		case <-timer.C:
			s.heartbeat(s.clock.Now())
		case <-s.closed:
			timer.Stop()
			return
		}
	}
}

// readLoop forwards frames until the connection fails or closes.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	defer close(s.inbound)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.readErr = err
			return
		}
		var item inbound
		if err := json.Unmarshal(data, &item.frame); err != nil {
			item.err = fmt.Errorf("decoding frame: %w", err)
		}
		select {
		case s.inbound <- item:
		case <-s.closed:
			return
		}
	}
}

func (s *Session) disconnected() error {
	<-s.readerDone
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	return fmt.Errorf("gateway: %s: connection lost: %w", s.name, s.readErr)
}

func (s *Session) write(message outgoing) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(message)
}

func (s *Session) record(dispatch Dispatch, matched bool) {
	if s.transcript == nil {
		return
	}
	err := s.transcript.Write(transcript.Record{
		Session:    s.name,
		Sequence:   dispatch.Sequence,
		Type:       dispatch.Type,
		ReceivedAt: dispatch.ReceivedAt,
		Payload:    dispatch.Raw,
		Matched:    matched,
	})
	if err != nil {
		s.logger.Warn("writing transcript record failed", "error", err)
	}
}

// Close shuts the session down. It is safe to call more than once and
// from any goroutine; failures are logged, never returned.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.waitGroup.Wait()

		s.writeMu.Lock()
		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		err := s.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
		s.writeMu.Unlock()
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) && !netutil.IsExpectedCloseError(err) {
			s.logger.Debug("sending close frame failed", "error", err)
		}
		if err := s.conn.Close(); err != nil && !netutil.IsExpectedCloseError(err) {
			s.logger.Debug("closing connection failed", "error", err)
		}
		<-s.readerDone

		if s.transcript != nil {
			if err := s.transcript.Close(); err != nil {
				s.logger.Warn("closing transcript failed", "path", s.transcript.Path(), "error", err)
			}
		}
	})
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// HeartbeatInterval returns the interval negotiated in HELLO.
func (s *Session) HeartbeatInterval() time.Duration { return s.keepalive.interval }

// LastHeartbeat returns when the last heartbeat was sent, or the
// handshake time if none has been.
func (s *Session) LastHeartbeat() time.Time {
	last, _ := s.keepalive.snapshot()
	return last
}

// HeartbeatsSent returns the number of scheduled heartbeats sent.
func (s *Session) HeartbeatsSent() int {
	_, sent := s.keepalive.snapshot()
	return sent
}

// Backlog returns the number of unclaimed dispatches. It must be called
// from the goroutine that calls Await.
func (s *Session) Backlog() int { return s.backlog.len() }

// transcriptName turns "a/admin" into a file-safe "a-admin".
func transcriptName(name string) string {
	safe := []byte(name)
	for index, character := range safe {
		switch {
		case character >= 'a' && character <= 'z',
			character >= 'A' && character <= 'Z',
			character >= '0' && character <= '9',
			character == '-', character == '_', character == '.':
		default:
			safe[index] = '-'
		}
	}
	return string(safe)
}
