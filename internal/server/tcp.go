package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// tcpTransport serialises writes so each line reaches the peer whole.
type tcpTransport struct {
	conn         net.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func newTCPTransport(conn net.Conn, writeTimeout time.Duration) *tcpTransport {
	return &tcpTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *tcpTransport) WriteLine(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(t.conn, line+"\n")
	return err
}

func (t *tcpTransport) Close() error { return t.conn.Close() }

func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

// scannerReader splits a byte stream on newlines. A trailing "\r" is
// dropped and lines longer than the configured limit end the stream.
type scannerReader struct {
	sc *bufio.Scanner
}

func newScannerReader(r io.Reader, maxLineBytes int) *scannerReader {
	sc := bufio.NewScanner(r)
	// The scanner counts the terminating newline against the limit.
	sc.Buffer(make([]byte, 0, min(4096, maxLineBytes+1)), maxLineBytes+1)
	return &scannerReader{sc: sc}
}

func (r *scannerReader) ReadLine() (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called, running one
// task per connection. It always returns a non-nil error; after Shutdown
// that error is ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln, true) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.trackListener(ln, false)

	s.logger.Info("chat server listening", "addr", ln.Addr().String())

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				tempDelay = nextAcceptDelay(tempDelay)
				s.logger.Warn("accept error, retrying", "error", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		tempDelay = 0

		t := newTCPTransport(conn, s.opts.WriteTimeout)
		r := newScannerReader(conn, s.opts.MaxLineBytes)
		if !s.goServe(func() { s.serveConn(t, r) }) {
			_ = conn.Close()
			return ErrServerClosed
		}
	}
}

func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
