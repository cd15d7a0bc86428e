package oszi

import (
	"fmt"
	"strings"
)

// Number of analog inputs and measurement slots of an HMO series scope
const (
	NumChannels = 4
	NumSlots    = 6
)

// Channel references one of the analog input channels, counting from 1
type Channel int

// Valid reports whether c names an existing channel
func (c Channel) Valid() bool {
	return c >= 1 && c <= NumChannels
}

func (c Channel) check() error {
	if !c.Valid() {
		return fmt.Errorf("%w: channel %d not in [1, %d]", ErrOutOfRange, int(c), NumChannels)
	}
	return nil
}

// Slot references one of the measurement computation slots, counting from 1
type Slot int

// Valid reports whether s names an existing measurement slot
func (s Slot) Valid() bool {
	return s >= 1 && s <= NumSlots
}

func (s Slot) check() error {
	if !s.Valid() {
		return fmt.Errorf("%w: measurement slot %d not in [1, %d]", ErrOutOfRange, int(s), NumSlots)
	}
	return nil
}

// Coupling is the input coupling of a channel.
// DC is with 50 Ohm termination, DCLimit with 1 MOhm
type Coupling byte

const (
	CouplingDC Coupling = iota
	CouplingDCLimit
	CouplingAC
	CouplingACLimit
	CouplingGND
)

var couplingTokens = map[Coupling]string{
	CouplingDC:      "DC",
	CouplingDCLimit: "DCL",
	CouplingAC:      "AC",
	CouplingACLimit: "ACL",
	CouplingGND:     "GND",
}

var couplingNames = map[Coupling]string{
	CouplingDC:      "dc",
	CouplingDCLimit: "dclimit",
	CouplingAC:      "ac",
	CouplingACLimit: "aclimit",
	CouplingGND:     "gnd",
}

func (c Coupling) String() string {
	if n, ok := couplingNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Coupling(%d)", byte(c))
}

// MarshalJSON encodes the coupling by name
func (c Coupling) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", c.String())), nil
}

// ParseCoupling accepts a coupling name ("ac", "dclimit", ...) or its
// protocol token ("ACL", "DCL", ...), case-insensitively
func ParseCoupling(s string) (Coupling, error) {
	for c, n := range couplingNames {
		if strings.EqualFold(s, n) || strings.EqualFold(s, couplingTokens[c]) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown coupling %q", ErrOutOfRange, s)
}

// WaveformRate selects the waveform update rate of the acquisition
type WaveformRate byte

const (
	RateAuto WaveformRate = iota
	RateMaxWaveforms
	RateMaxSamples
)

var rateTokens = map[WaveformRate]string{
	RateAuto:         "AUTO",
	RateMaxWaveforms: "MWAV",
	RateMaxSamples:   "MSAM",
}

var rateNames = map[WaveformRate]string{
	RateAuto:         "auto",
	RateMaxWaveforms: "maxwaveforms",
	RateMaxSamples:   "maxsamples",
}

func (r WaveformRate) String() string {
	if n, ok := rateNames[r]; ok {
		return n
	}
	return fmt.Sprintf("WaveformRate(%d)", byte(r))
}

// MarshalJSON encodes the rate by name
func (r WaveformRate) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", r.String())), nil
}

// ParseWaveformRate accepts a rate name or its protocol token
func ParseWaveformRate(s string) (WaveformRate, error) {
	for r, n := range rateNames {
		if strings.EqualFold(s, n) || strings.EqualFold(s, rateTokens[r]) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown waveform rate %q", ErrOutOfRange, s)
}

// TriggerMode selects between auto and normal triggering of trigger A
type TriggerMode byte

const (
	TriggerAuto TriggerMode = iota
	TriggerNormal
)

func (m TriggerMode) token() (string, bool) {
	switch m {
	case TriggerAuto:
		return "AUTO", true
	case TriggerNormal:
		return "NORM", true
	}
	return "", false
}

func (m TriggerMode) String() string {
	switch m {
	case TriggerAuto:
		return "auto"
	case TriggerNormal:
		return "normal"
	}
	return fmt.Sprintf("TriggerMode(%d)", byte(m))
}

// MarshalJSON encodes the trigger mode by name
func (m TriggerMode) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", m.String())), nil
}

// ParseTriggerMode accepts "auto", "normal" or the tokens "AUTO", "NORM"
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch strings.ToLower(s) {
	case "auto":
		return TriggerAuto, nil
	case "normal", "norm":
		return TriggerNormal, nil
	}
	return 0, fmt.Errorf("%w: unknown trigger mode %q", ErrOutOfRange, s)
}

// Statistic is one of the values computed for a measurement slot
type Statistic byte

const (
	StatResult Statistic = iota
	StatAverage
	StatMax
	StatMin
	StatStdDev
	StatCount
)

// Statistics lists all statistics in report order
var Statistics = []Statistic{StatResult, StatAverage, StatMin, StatMax, StatStdDev, StatCount}

var statSuffixes = map[Statistic]string{
	StatResult:  "RES?",
	StatAverage: "RES:AVG?",
	StatMax:     "RES:PPE?",
	StatMin:     "RES:NPE?",
	StatStdDev:  "RES:STDD?",
	StatCount:   "RES:WFMC?",
}

var statNames = map[Statistic]string{
	StatResult:  "result",
	StatAverage: "average",
	StatMax:     "max",
	StatMin:     "min",
	StatStdDev:  "stddev",
	StatCount:   "count",
}

func (s Statistic) String() string {
	if n, ok := statNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Statistic(%d)", byte(s))
}

// MarshalJSON encodes the statistic by name
func (s Statistic) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// ParseStatistic accepts a statistic name, e.g. "average" or "stddev"
func ParseStatistic(s string) (Statistic, error) {
	for st, n := range statNames {
		if strings.EqualFold(s, n) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown statistic %q", ErrOutOfRange, s)
}
