package oszi

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type exchange struct {
	Exchange
	start time.Time
	log   log.FieldLogger
}

func (s *Session) begin(kind ExchangeKind, cmd string) *exchange {
	id := uuid.NewString()
	return &exchange{
		Exchange: Exchange{ID: id, Kind: kind, Command: cmd},
		start:    time.Now(),
		log:      s.Log.WithFields(log.Fields{"command": cmd, "xid": id}),
	}
}

func (s *Session) finish(x *exchange, n int, err error) {
	x.Bytes = n
	x.Err = err
	x.Duration = time.Since(x.start)
	s.Observer.ObserveExchange(x.Exchange)
}

// current returns the link if it is open
func (s *Session) current() (*link, error) {
	s.stateMu.RLock()
	l := s.link
	s.stateMu.RUnlock()
	if l == nil || !l.isOpen() {
		return nil, ErrNotConnected
	}
	return l, nil
}

func (s *Session) write(x *exchange) (*link, error) {
	l, err := s.current()
	if err != nil {
		x.log.Error("Data port is not open!")
		return nil, err
	}
	// leftovers of an earlier answer must not be taken for this one
	if b := l.available(); len(b) > 0 {
		x.log.Debugf("Dropping %v stale bytes before command", len(b))
	}
	return l, l.writeLine(x.Command)
}

// Send writes command to the instrument. No answer is awaited, so
// success means the bytes were handed to the transport, not that the
// instrument applied the setting.
func (s *Session) Send(command string) error {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()

	x := s.begin(KindSend, command)
	_, err := s.write(x)
	s.finish(x, 0, err)
	return err
}

// Query writes command and returns the answer including its line
// terminator. The first bytes have to arrive within Timeouts.Response,
// otherwise the transport is closed. The line terminator then has to
// arrive within Timeouts.Terminator.
func (s *Session) Query(command string) (string, error) {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()

	x := s.begin(KindQuery, command)
	b, err := s.queryLine(x)
	s.finish(x, len(b), err)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Session) queryLine(x *exchange) ([]byte, error) {
	l, err := s.write(x)
	if err != nil {
		return nil, err
	}

	b, err := l.next(s.Timeouts.Response)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			// No answer at all counts as a lost connection
			x.log.Errorf("No device response within %v, closing data port", s.Timeouts.Response)
			l.close()
		}
		return nil, fmt.Errorf("query %q: %w", x.Command, err)
	}

	deadline := time.Now().Add(s.Timeouts.Terminator)
	for bytes.IndexByte(b, lineTerminator) < 0 {
		c, err := l.next(time.Until(deadline))
		if errors.Is(err, ErrTimeout) {
			x.log.Errorf("No line terminator within %v after %v bytes", s.Timeouts.Terminator, len(b))
			return nil, fmt.Errorf("query %q: incomplete answer %q: %w", x.Command, b, err)
		}
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", x.Command, err)
		}
		b = append(b, c...)
	}
	return b, nil
}

// collect writes the data query of a waveform and reads until the
// instrument was silent for Timeouts.WaveformIdle
func (s *Session) collect(x *exchange) ([]byte, error) {
	l, err := s.write(x)
	if err != nil {
		return nil, err
	}

	b, err := l.next(s.Timeouts.Response)
	if err != nil {
		x.log.Errorf("No device response to data query within %v", s.Timeouts.Response)
		return nil, fmt.Errorf("query %q: %w", x.Command, err)
	}
	for {
		c, err := l.next(s.Timeouts.WaveformIdle)
		if errors.Is(err, ErrTimeout) {
			return b, nil
		}
		if err != nil {
			return nil, fmt.Errorf("query %q after %v bytes: %w", x.Command, len(b), err)
		}
		b = append(b, c...)
	}
}
