// Package oszi drives a Hameg/R&S HMO series oscilloscope over a serial
// line (or a serial to network bridge) with its SCPI command language.
//
// A Session owns the connection. Settings are fire-and-forget commands,
// queries wait for a line terminated answer within fixed time windows.
// Every operation returns; failures are reported as errors wrapping one
// of ErrNotConnected, ErrTimeout, ErrMalformed or ErrOutOfRange.
//
// Operations on a Session are serialized, each one blocks until its
// exchange with the instrument is finished.
package oszi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const cmdIdentity = "*IDN?"

// Timeouts bound the waits for instrument answers
type Timeouts struct {
	// Handshake is the wait for the first bytes of the *IDN? answer
	Handshake time.Duration `yaml:"handshake"`
	// Response is the wait for the first bytes of any other answer
	Response time.Duration `yaml:"response"`
	// Terminator is the wait for the line terminator after the first bytes
	Terminator time.Duration `yaml:"terminator"`
	// WaveformIdle ends a waveform transfer once no bytes arrived for that long
	WaveformIdle time.Duration `yaml:"waveform_idle"`
}

// DefaultTimeouts returns the windows used by NewSession
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Handshake:    1000 * time.Millisecond,
		Response:     1000 * time.Millisecond,
		Terminator:   1000 * time.Millisecond,
		WaveformIdle: 5000 * time.Millisecond,
	}
}

// Session is the connection to one instrument
type Session struct {
	Timeouts Timeouts
	Log      log.FieldLogger
	Observer Observer
	Opener   Opener

	// cmdLock serializes exchanges, stateMu guards the fields below it
	cmdLock  sync.Mutex
	stateMu  sync.RWMutex
	link     *link
	linkName string
	baud     int
	identity string
}

// NewSession is the factory method to create a new, unconnected Session
func NewSession() *Session {
	return &Session{
		Timeouts: DefaultTimeouts(),
		Log:      log.StandardLogger(),
		Observer: nopObserver{},
		Opener:   DefaultOpener,
	}
}

// Dial creates a Session and connects it. The returned Session is never
// nil: after a failed handshake it stays disconnected and may be retried
// with Reconnect.
func Dial(link string, baud int) (*Session, error) {
	s := NewSession()
	err := s.Connect(link, baud)
	return s, err
}

// Connect opens link and identifies the instrument with *IDN?. A
// previous connection is closed first. On failure the session is left
// disconnected.
func (s *Session) Connect(link string, baud int) error {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()
	return s.connect(link, baud)
}

// Reconnect connects again to the link of the last Connect
func (s *Session) Reconnect() error {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()

	s.stateMu.RLock()
	link, baud := s.linkName, s.baud
	s.stateMu.RUnlock()
	if link == "" {
		return errors.New("reconnect: session was never connected")
	}
	return s.connect(link, baud)
}

func (s *Session) connect(linkName string, baud int) error {
	s.closeLink()

	s.stateMu.Lock()
	s.link = nil
	s.linkName, s.baud = linkName, baud
	s.identity = ""
	s.stateMu.Unlock()

	logger := s.Log.WithField("link", linkName)
	logger.Infof("Try to connect to measurement device on %v with baud rate %v", linkName, baud)

	conn, err := s.Opener(linkName, baud)
	if err != nil {
		logger.Errorf("Could not open data port: %v", err)
		return fmt.Errorf("opening %v: %w", linkName, err)
	}
	l := newLink(conn, logger)
	s.stateMu.Lock()
	s.link = l
	s.stateMu.Unlock()

	x := s.begin(KindHandshake, cmdIdentity)
	b, err := s.handshake(l)
	s.finish(x, len(b), err)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			logger.Errorf("No device response to %v within %v", cmdIdentity, s.Timeouts.Handshake)
		} else {
			logger.Error(err)
		}
		l.close()
		return fmt.Errorf("handshake on %v: %w", linkName, err)
	}

	s.stateMu.Lock()
	s.identity = string(b)
	s.stateMu.Unlock()
	logger.Infof("Connected to device %v", strings.TrimSpace(string(b)))
	return nil
}

// handshake takes whatever arrives first as identity, without waiting
// for the line terminator
func (s *Session) handshake(l *link) ([]byte, error) {
	if err := l.writeLine(cmdIdentity); err != nil {
		return nil, err
	}
	return l.next(s.Timeouts.Handshake)
}

// IsConnected reports whether the transport is open and the instrument
// identified itself
func (s *Session) IsConnected() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.link != nil && s.link.isOpen() && s.identity != ""
}

// Identity returns the raw answer to *IDN? of the last successful handshake
func (s *Session) Identity() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.identity
}

// Link returns the link name of the last Connect
func (s *Session) Link() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.linkName
}

// Done returns a channel that is closed once the current connection is
// closed, by Close or because the instrument stopped answering
func (s *Session) Done() <-chan struct{} {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.link == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return s.link.done
}

// Close drains pending input and closes the transport. Closing a closed
// session is a no-op.
func (s *Session) Close() error {
	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()
	return s.closeLink()
}

func (s *Session) closeLink() error {
	s.stateMu.RLock()
	l := s.link
	s.stateMu.RUnlock()
	if l == nil {
		return nil
	}
	return l.close()
}
