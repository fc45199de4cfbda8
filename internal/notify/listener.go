package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	// maxNotificationSize is the most a camera notification may carry.
	maxNotificationSize = 1024

	defaultReadTimeout = 5 * time.Second
)

// Handler receives the raw bytes of one notification.
type Handler func(data []byte) error

// Logger is the logging interface used by the listener.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds listener settings. Port 0 lets the kernel pick.
type Config struct {
	Host        string
	Port        int
	ReadTimeout time.Duration
}

// Listener accepts camera push notifications over plain TCP.
//
// Each connection is read once (up to 1024 bytes), the bytes are echoed
// back unmodified, the connection is closed and the bytes are handed to
// the handler.
//
// Thread Safety: Start and Close may be called from any goroutine.
type Listener struct {
	cfg     Config
	handler Handler
	logger  Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closed   bool
}

// New creates a Listener. Call Start to bind.
func New(cfg Config, handler Handler, logger Logger) (*Listener, error) {
	if handler == nil {
		return nil, ErrNoHandler
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Listener{cfg: cfg, handler: handler, logger: logger}, nil
}

// Start binds the listener and begins accepting connections. A bind
// failure is returned to the caller.
func (l *Listener) Start(ctx context.Context) error {
	addr := net.JoinHostPort(l.cfg.Host, strconv.Itoa(l.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListenFailed, addr, err)
	}

	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()

	l.wg.Add(1)
	go l.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Port returns the bound TCP port, or 0 before Start.
func (l *Listener) Port() int {
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Close stops accepting and waits for in-flight connections.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed || l.listener == nil {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	err := l.listener.Close()
	l.mu.Unlock()

	l.wg.Wait()
	return err
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn("notification accept failed", "error", err)
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.serve(conn)
		}()
	}
}

func (l *Listener) serve(conn net.Conn) {
	remote := conn.RemoteAddr().String()

	buf := make([]byte, maxNotificationSize)
	if err := conn.SetDeadline(time.Now().Add(l.cfg.ReadTimeout)); err != nil {
		l.logger.Warn("setting notification deadline", "remote", remote, "error", err)
	}
	n, err := conn.Read(buf)
	if n > 0 {
		if _, werr := conn.Write(buf[:n]); werr != nil {
			l.logger.Debug("echoing notification", "remote", remote, "error", werr)
		}
	}
	conn.Close() //nolint:errcheck // connection is done either way

	if n == 0 {
		l.logger.Debug("empty notification", "remote", remote, "error", err)
		return
	}

	if err := l.handler(buf[:n]); err != nil {
		l.logger.Warn("notification rejected", "remote", remote, "error", err)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
