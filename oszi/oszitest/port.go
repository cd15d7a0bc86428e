// Package oszitest provides an in-memory instrument connection for
// testing code that drives an oscilloscope session.
package oszitest

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by Read and Write on a closed Port
var ErrClosed = errors.New("oszitest: port closed")

// Responder answers a line written to the Port with chunks that the
// reader receives one after another. A nil or empty result means the
// instrument stays silent.
type Responder func(line string) []string

// Port implements io.ReadWriteCloser. Lines written to it are recorded
// and answered by its Responder.
type Port struct {
	// Gap delays every answer chunk, zero delivers them at once
	Gap time.Duration
	// WriteErr, if set, is returned by the next Write
	WriteErr error

	respond Responder

	mu         sync.Mutex
	cond       *sync.Cond
	rbuf       bytes.Buffer
	partial    []byte
	lines      []string
	closed     bool
	closeCalls int
	flushes    int
}

// NewPort creates an open Port answering with respond
func NewPort(respond Responder) *Port {
	p := &Port{respond: respond}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Read blocks until bytes are available or the Port is closed
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.rbuf.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return 0, ErrClosed
	}
	return p.rbuf.Read(b)
}

// Write records complete lines and schedules their answers
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	if p.WriteErr != nil {
		err := p.WriteErr
		p.WriteErr = nil
		return 0, err
	}

	p.partial = append(p.partial, b...)
	for {
		i := bytes.IndexByte(p.partial, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(p.partial[:i]), "\r")
		p.partial = p.partial[i+1:]
		p.lines = append(p.lines, line)
		if p.respond == nil {
			continue
		}
		chunks := p.respond(line)
		if p.Gap == 0 {
			for _, c := range chunks {
				p.rbuf.WriteString(c)
			}
			p.cond.Broadcast()
		} else if len(chunks) > 0 {
			go p.deliver(chunks, p.Gap)
		}
	}
	return len(b), nil
}

func (p *Port) deliver(chunks []string, gap time.Duration) {
	for _, c := range chunks {
		time.Sleep(gap)
		p.Feed(c)
	}
}

// Feed makes s available to the reader, as if sent by the instrument
func (p *Port) Feed(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.rbuf.WriteString(s)
	p.cond.Broadcast()
}

// Flush counts calls, like a driver discarding its buffers
func (p *Port) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushes++
	return nil
}

// Close closes the Port and wakes a blocked reader
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalls++
	p.closed = true
	p.cond.Broadcast()
	return nil
}

// Lines returns all lines written so far, without terminators
func (p *Port) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// Closed reports whether Close was called
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// CloseCalls returns the number of Close calls
func (p *Port) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

// Flushes returns the number of Flush calls
func (p *Port) Flushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushes
}

// Opener returns an opener handing out p for any link
func (p *Port) Opener() func(link string, baud int) (io.ReadWriteCloser, error) {
	return func(string, int) (io.ReadWriteCloser, error) {
		return p, nil
	}
}

// FailingOpener returns an opener that always fails with err
func FailingOpener(err error) func(link string, baud int) (io.ReadWriteCloser, error) {
	return func(string, int) (io.ReadWriteCloser, error) {
		return nil, err
	}
}

// Scope returns a Responder acting like an instrument that identifies as
// idn and answers queries from answers. Other lines stay unanswered.
func Scope(idn string, answers map[string][]string) Responder {
	return func(line string) []string {
		if line == "*IDN?" {
			return []string{idn + "\n"}
		}
		return answers[line]
	}
}
