package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	v1 "stronghold/contracts/stepup/v1"
)

// Config carries the relay knobs surfaced through app configuration.
type Config struct {
	PINDigits      int
	PINOptionCount int
	QueueCapacity  int
	CleanupDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PINDigits <= 0 {
		c.PINDigits = defaultPINDigits
	}
	if c.PINOptionCount <= 0 {
		c.PINOptionCount = defaultPINOptionCount
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	if c.CleanupDelay <= 0 {
		c.CleanupDelay = defaultCleanupDelay
	}
	return c
}

// Service owns the session lifecycle: creation, verification, step-up
// indirection, and teardown across every adapter and the registry.
//
// All relay state hangs off this single instance; there are no ambient
// globals.
type Service struct {
	log *slog.Logger
	cfg Config

	registry   *Registry
	mapper     *Mapper
	sockets    *SocketTable
	streams    *StreamTable
	queue      *PollQueue
	dispatcher *Dispatcher
	metrics    *Metrics

	// Cleanup bookkeeping. A generation counter per session id guards the
	// recreate-before-cleanup race: a stale timer whose generation no
	// longer matches must no-op instead of destroying the new session.
	cleanupMu   sync.Mutex
	generations map[string]uint64
	timers      map[string]*time.Timer
}

// NewService wires a fully owned relay core.
func NewService(log *slog.Logger, cfg Config, metrics *Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	sockets := NewSocketTable(log)
	streams := NewStreamTable(log)
	queue := NewPollQueue(cfg.QueueCapacity)

	return &Service{
		log:         log,
		cfg:         cfg,
		registry:    NewRegistry(cfg.PINDigits),
		mapper:      NewMapper(),
		sockets:     sockets,
		streams:     streams,
		queue:       queue,
		dispatcher:  NewDispatcher(log, sockets, streams, queue, metrics),
		metrics:     metrics,
		generations: make(map[string]uint64),
		timers:      make(map[string]*time.Timer),
	}
}

// Sockets exposes the WebSocket adapter for the gateway.
func (s *Service) Sockets() *SocketTable { return s.sockets }

// Streams exposes the SSE adapter for the gateway.
func (s *Service) Streams() *StreamTable { return s.streams }

// Queue exposes the polling adapter for the poll handler.
func (s *Service) Queue() *PollQueue { return s.queue }

// Mapper exposes the step-up token lookup for the gateways.
func (s *Service) Mapper() *Mapper { return s.mapper }

// Dispatch is the event-delivery contract exposed to collaborator
// subsystems (WebAuthn, push registration): one call, full fan-out.
func (s *Service) Dispatch(targetID string, ev v1.Event) {
	s.dispatcher.Dispatch(targetID, ev)
}

// StartSession creates (or re-enters) a session for username and issues a
// verification PIN. Re-entry invalidates any pending delayed cleanup.
func (s *Service) StartSession(username string) (SessionInfo, error) {
	info, err := s.registry.StartSession(username)
	if err != nil {
		return SessionInfo{}, err
	}

	s.cleanupMu.Lock()
	s.generations[info.SessionID]++
	if t := s.timers[info.SessionID]; t != nil {
		t.Stop()
		delete(s.timers, info.SessionID)
	}
	s.cleanupMu.Unlock()

	if !info.Resumed {
		s.metrics.sessionDelta(1)
	}

	s.log.Info("relay.session.start", "session_id", info.SessionID, "resumed", info.Resumed)
	return info, nil
}

// JoinSession resolves username to its live session id.
func (s *Service) JoinSession(username string) (string, error) {
	return s.registry.JoinSession(username)
}

// ResolveSession turns a session id or username into a live session id.
func (s *Service) ResolveSession(sessionID, username string) (string, error) {
	return s.registry.Resolve(sessionID, username)
}

// PinOptions returns the multiple-choice PIN candidates for a session.
func (s *Service) PinOptions(sessionID string) ([]string, error) {
	return s.registry.PinOptions(sessionID, s.cfg.PINOptionCount)
}

// VerifyPin checks submitted against the session's current PIN.
//
// Success fans an auth_complete event out to the session. Failure fans out
// auth_failed and schedules a delayed teardown, giving the in-flight push
// time to reach the browser before state disappears underneath it.
func (s *Service) VerifyPin(sessionID, submitted string) error {
	err := s.registry.Verify(sessionID, submitted)
	switch err {
	case nil:
		s.Dispatch(sessionID, v1.Event{Kind: v1.KindAuthComplete, Data: sessionID})
		s.log.Info("relay.verify.ok", "session_id", sessionID)
		return nil
	case ErrVerificationFailed:
		s.Dispatch(sessionID, v1.Event{Kind: v1.KindAuthFailed})
		s.ScheduleCleanup(sessionID, s.cfg.CleanupDelay)
		s.log.Info("relay.verify.fail", "session_id", sessionID)
		return err
	default:
		return err
	}
}

// InitiateStepUp mints a step-up token addressed at clientID and notifies
// the client's channels. The token is what the secondary device gets.
func (s *Service) InitiateStepUp(clientID string) (string, error) {
	if !s.hasChannel(clientID) {
		return "", fmt.Errorf("%w: client %s", ErrNotFound, clientID)
	}

	stepUpID, err := NewStepUpID(time.Now().UTC())
	if err != nil {
		return "", err
	}
	if err := s.mapper.Create(stepUpID, clientID); err != nil {
		return "", err
	}

	s.Dispatch(clientID, v1.Event{Kind: v1.KindStepUpInitiated, Data: stepUpID})
	s.log.Info("relay.stepup.initiate", "client_id", clientID, "step_up_id", stepUpID)
	return stepUpID, nil
}

// CompleteStepUp fans out the completion signal and ends the client's SSE
// stream, mirroring the one-shot nature of the original flow.
func (s *Service) CompleteStepUp(clientID string) error {
	if !s.hasChannel(clientID) {
		return fmt.Errorf("%w: client %s", ErrNotFound, clientID)
	}

	s.Dispatch(clientID, v1.Event{Kind: v1.KindAuthComplete})
	s.streams.CloseStream(clientID)
	s.mapper.DeleteTarget(clientID)

	s.log.Info("relay.stepup.complete", "client_id", clientID)
	return nil
}

// RelayMessage resolves a step-up token and forwards content to the
// originating client's channels as a mobile_message event.
func (s *Service) RelayMessage(stepUpID, content string) error {
	target, err := s.mapper.Resolve(stepUpID)
	if err != nil {
		return err
	}

	s.Dispatch(target, v1.Event{Kind: v1.KindMobileMessage, Data: content})
	return nil
}

// DeleteSession synchronously removes every trace of sessionID: registry
// entry, username mapping, poll buffer, socket handle, SSE stream, step-up
// tokens, and any pending cleanup timer. Unknown sessions are a no-op.
func (s *Service) DeleteSession(sessionID string) {
	s.cleanupMu.Lock()
	s.generations[sessionID]++
	if t := s.timers[sessionID]; t != nil {
		t.Stop()
		delete(s.timers, sessionID)
	}
	s.cleanupMu.Unlock()

	existed := s.registry.Has(sessionID)

	s.registry.Delete(sessionID)
	s.queue.Delete(sessionID)
	s.sockets.CloseAll(sessionID)
	s.streams.CloseAll(sessionID)
	s.mapper.DeleteTarget(sessionID)

	if existed {
		s.metrics.sessionDelta(-1)
	}
	s.log.Info("relay.session.delete", "session_id", sessionID)
}

// ScheduleCleanup arranges a teardown of sessionID after delay without
// blocking the caller. The task is cancellable and generation-guarded:
// if the session is deleted or recreated first, the timer no-ops.
func (s *Service) ScheduleCleanup(sessionID string, delay time.Duration) {
	if delay <= 0 {
		delay = s.cfg.CleanupDelay
	}

	s.cleanupMu.Lock()
	gen := s.generations[sessionID]
	if t := s.timers[sessionID]; t != nil {
		t.Stop()
	}
	s.timers[sessionID] = time.AfterFunc(delay, func() {
		s.cleanupMu.Lock()
		stale := s.generations[sessionID] != gen
		delete(s.timers, sessionID)
		s.cleanupMu.Unlock()

		if stale {
			s.log.Debug("relay.cleanup.stale", "session_id", sessionID)
			return
		}
		s.DeleteSession(sessionID)
	})
	s.cleanupMu.Unlock()
}

// hasChannel reports whether any push transport is live for id.
// Poll buffers do not count: they exist for clients that have no channel.
func (s *Service) hasChannel(id string) bool {
	return s.sockets.Has(id) || s.streams.Has(id)
}
