package sia

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/config"
	"github.com/alarmbridge/sia2mqtt/internal/log"
	"github.com/alarmbridge/sia2mqtt/internal/types"
)

const (
	bindAttempts   = 5
	bindRetryDelay = 2 * time.Second
)

// ConnectionEvent reports a panel connecting to or disconnecting from the
// receiver.
type ConnectionEvent struct {
	RemoteAddr string
	Connected  bool
}

// Server owns the listening socket and one Handler per accepted connection.
type Server struct {
	cfg *config.SIAConfig
	log *log.Logger

	mu            sync.Mutex
	listener      net.Listener
	handlers      map[*Handler]struct{}
	running       bool
	lastHeartbeat time.Time

	alarms      chan types.AlarmEvent
	heartbeats  chan time.Time
	connections chan ConnectionEvent
	done        chan struct{}
}

func NewServer(cfg *config.SIAConfig, logger *log.Logger) *Server {
	return &Server{
		cfg:         cfg,
		log:         logger,
		handlers:    make(map[*Handler]struct{}),
		alarms:      make(chan types.AlarmEvent, 100),
		heartbeats:  make(chan time.Time, 16),
		connections: make(chan ConnectionEvent, 16),
		done:        make(chan struct{}),
	}
}

// Start binds the listening socket and begins accepting connections. A port
// still held by a previous process instance is retried with linearly
// increasing delay before giving up; any other bind error is fatal
// immediately.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	var ln net.Listener
	var err error
	for attempt := 1; attempt <= bindAttempts; attempt++ {
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("failed to bind port %d: %v", s.cfg.Port, err)
		}
		if attempt < bindAttempts {
			delay := time.Duration(attempt) * bindRetryDelay
			s.log.Warning("Port %d in use, retrying in %v (attempt %d/%d)", s.cfg.Port, delay, attempt, bindAttempts)
			time.Sleep(delay)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to bind port %d after %d attempts: %v", s.cfg.Port, bindAttempts, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	s.log.Info("SIA receiver listening on port %d", s.cfg.Port)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.log.Error("Accept failed: %v", err)
			return
		}

		h := newHandler(conn, s.log, s.cfg.Account, s.cfg.AESKey,
			time.Duration(s.cfg.IdleTimeoutMinutes)*time.Minute)
		h.onAlarm = s.emitAlarm
		h.onHeartbeat = s.emitHeartbeat
		h.onLive = s.markAlive

		s.mu.Lock()
		s.handlers[h] = struct{}{}
		s.mu.Unlock()

		s.log.Sia("Panel connected from %s", conn.RemoteAddr())
		s.emitConnection(ConnectionEvent{RemoteAddr: conn.RemoteAddr().String(), Connected: true})

		go func() {
			h.Run()
			s.mu.Lock()
			delete(s.handlers, h)
			s.mu.Unlock()
			s.log.Sia("Panel disconnected from %s", conn.RemoteAddr())
			s.emitConnection(ConnectionEvent{RemoteAddr: conn.RemoteAddr().String(), Connected: false})
		}()
	}
}

// Stop closes the listener and forcibly closes all open panel connections so
// the listener can release its port promptly.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	for h := range s.handlers {
		h.conn.Close()
	}
	s.mu.Unlock()
	s.log.Info("SIA receiver stopped")
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) Port() int {
	return s.cfg.Port
}

func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// MillisSinceHeartbeat returns how long ago the last well-formed frame
// arrived, or -1 when nothing has been received yet. Feeds readiness checks
// such as "has the panel connected during pairing".
func (s *Server) MillisSinceHeartbeat() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastHeartbeat.IsZero() {
		return -1
	}
	return time.Since(s.lastHeartbeat).Milliseconds()
}

// Alarms delivers one normalized event per decoded, account-matched frame.
func (s *Server) Alarms() <-chan types.AlarmEvent {
	return s.alarms
}

// Heartbeats delivers the receipt time of every NULL heartbeat frame.
func (s *Server) Heartbeats() <-chan time.Time {
	return s.heartbeats
}

// Connections delivers connect/disconnect notifications.
func (s *Server) Connections() <-chan ConnectionEvent {
	return s.connections
}

func (s *Server) markAlive(t time.Time) {
	s.mu.Lock()
	s.lastHeartbeat = t
	s.mu.Unlock()
}

func (s *Server) emitAlarm(ev types.AlarmEvent) {
	select {
	case s.alarms <- ev:
	default:
		s.log.Warning("Alarm channel full, dropping event %s", ev.Type)
	}
}

func (s *Server) emitHeartbeat(t time.Time) {
	select {
	case s.heartbeats <- t:
	default:
	}
}

func (s *Server) emitConnection(ev ConnectionEvent) {
	select {
	case s.connections <- ev:
	default:
	}
}
