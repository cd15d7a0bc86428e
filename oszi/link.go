package oszi

import (
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	readBufSize = 512
	inQueueLen  = 64
)

// link is the byte connection to the instrument, via serial device or
// network. A reader goroutine forwards received bytes to in, so waiting
// for an answer is a select with a deadline instead of polling.
type link struct {
	conn  io.ReadWriteCloser
	log   log.FieldLogger
	wlock sync.Mutex

	mu     sync.Mutex
	closed bool

	done chan struct{}
	in   chan []byte
}

func newLink(conn io.ReadWriteCloser, logger log.FieldLogger) *link {
	l := &link{
		conn: conn,
		log:  logger,
		done: make(chan struct{}),
		in:   make(chan []byte, inQueueLen),
	}
	go l.readLoop()
	return l
}

func (l *link) readLoop() {
	defer close(l.in)

	b := make([]byte, readBufSize)
	for {
		n, err := l.conn.Read(b)
		if n > 0 {
			chunk := append([]byte(nil), b[:n]...)
			l.log.Debugf("Read b=%q, n=%v", chunk, n)
			select {
			case l.in <- chunk:
			case <-l.done:
				return
			}
		}
		if err != nil {
			select {
			case <-l.done:
				l.log.Debugf("Closing, returning from reading loop goroutine")
			default:
				// A dead connection is treated as closed
				l.log.Errorf("Reading from data port failed: %v", err)
				l.close()
			}
			return
		}
		// n == 0 and no error: driver read timeout expired
		select {
		case <-l.done:
			return
		default:
		}
	}
}

func (l *link) isOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// writeLine writes s followed by the line terminator
func (l *link) writeLine(s string) error {
	if !l.isOpen() {
		return ErrNotConnected
	}
	l.wlock.Lock()
	defer l.wlock.Unlock()

	b := append([]byte(s), lineTerminator)
	n, err := l.conn.Write(b)
	l.log.Debugf("Write b=%q, n=%v, err=%v", b, n, err)
	if err != nil {
		return fmt.Errorf("writing %q: %w", s, err)
	}
	return nil
}

// next waits at most timeout for received bytes. It returns the first
// chunk together with everything else available at that moment.
func (l *link) next(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b, ok := <-l.in:
		if !ok {
			return nil, ErrNotConnected
		}
		return append(b, l.available()...), nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-l.done:
		return nil, ErrNotConnected
	}
}

// available takes all received bytes without waiting
func (l *link) available() []byte {
	var b []byte
	for {
		select {
		case c, ok := <-l.in:
			if !ok {
				return b
			}
			b = append(b, c...)
		default:
			return b
		}
	}
}

// close drains unread input and closes the connection. Only the first
// call has an effect.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	if b := l.available(); len(b) > 0 {
		l.log.Debugf("Discarding %v unread bytes", len(b))
	}
	switch c := l.conn.(type) {
	case interface{ ResetInputBuffer() error }:
		if err := c.ResetInputBuffer(); err != nil {
			l.log.Debugf("Resetting input buffer: %v", err)
		}
	case interface{ Flush() error }:
		if err := c.Flush(); err != nil {
			l.log.Debugf("Flushing port: %v", err)
		}
	}
	return l.conn.Close()
}
