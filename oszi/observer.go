package oszi

import "time"

// ExchangeKind classifies an exchange with the instrument
type ExchangeKind string

const (
	KindHandshake ExchangeKind = "handshake"
	KindSend      ExchangeKind = "send"
	KindQuery     ExchangeKind = "query"
	KindWaveform  ExchangeKind = "waveform"
)

// Exchange describes one finished command or query
type Exchange struct {
	ID       string
	Kind     ExchangeKind
	Command  string
	Bytes    int // bytes received
	Duration time.Duration
	Err      error
}

// Observer is notified after every exchange that reached the transport.
// Parameters rejected before any I/O are not reported.
type Observer interface {
	ObserveExchange(x Exchange)
}

type nopObserver struct{}

func (nopObserver) ObserveExchange(Exchange) {}
