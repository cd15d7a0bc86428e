package oszi

import (
	"fmt"
	"math"
)

// Parameter ranges accepted by the instrument
const (
	MinChannelScale    = 0.001 // V/div
	MaxChannelScale    = 10.0  // V/div
	MaxChannelPosition = 5.0   // div
	MaxTriggerPosition = 500.0 // s
)

func (s *Session) reject(err error) error {
	s.Log.Warn(err.Error())
	return err
}

func within(v, lo, hi float64) bool {
	// false for NaN as well
	return v >= lo && v <= hi
}

// Run starts continuous acquisition
func (s *Session) Run() error {
	return s.Send("RUN")
}

// Stop stops acquisition
func (s *Session) Stop() error {
	return s.Send("STOP")
}

// SetTimebase sets the horizontal scale in seconds per division. The
// scale has to be positive and finite.
func (s *Session) SetTimebase(scale float64) error {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return s.reject(fmt.Errorf("%w: timebase %v", ErrOutOfRange, scale))
	}
	return s.Send("TIM:SCAL " + formatFloat(scale))
}

// AcquisitionTime queries the acquisition time actually used by the
// instrument, in seconds
func (s *Session) AcquisitionTime() (float64, error) {
	return s.queryFloat("TIM:RAT?")
}

// SetTriggerPosition sets the trigger position in seconds, which has to
// be between -500 and 500
func (s *Session) SetTriggerPosition(position float64) error {
	if !within(position, -MaxTriggerPosition, MaxTriggerPosition) {
		return s.reject(fmt.Errorf("%w: trigger position %v not in [%v, %v]", ErrOutOfRange, position, -MaxTriggerPosition, MaxTriggerPosition))
	}
	return s.Send("TIM:POS " + formatFloat(position))
}

// SetWaveformRate sets the waveform update rate
func (s *Session) SetWaveformRate(rate WaveformRate) error {
	token, ok := rateTokens[rate]
	if !ok {
		return s.reject(fmt.Errorf("%w: waveform rate %v", ErrOutOfRange, rate))
	}
	return s.Send("ACQ:WRAT " + token)
}

// SetRollMode enables or disables the roll mode
func (s *Session) SetRollMode(on bool) error {
	return s.Send("TIM:ROLL:ENAB " + onOff(on))
}

// SetChannel switches an input channel on or off
func (s *Session) SetChannel(ch Channel, on bool) error {
	if err := ch.check(); err != nil {
		return s.reject(err)
	}
	return s.Send(channelCmd(ch, "STAT "+onOff(on)))
}

// SetChannelCoupling sets the input coupling of a channel
func (s *Session) SetChannelCoupling(ch Channel, coupling Coupling) error {
	if err := ch.check(); err != nil {
		return s.reject(err)
	}
	token, ok := couplingTokens[coupling]
	if !ok {
		return s.reject(fmt.Errorf("%w: coupling %v", ErrOutOfRange, coupling))
	}
	return s.Send(channelCmd(ch, "COUP "+token))
}

// SetChannelScale sets the vertical scale of a channel in V/div,
// between 0.001 and 10
func (s *Session) SetChannelScale(ch Channel, scale float64) error {
	if err := ch.check(); err != nil {
		return s.reject(err)
	}
	if !within(scale, MinChannelScale, MaxChannelScale) {
		return s.reject(fmt.Errorf("%w: channel scale %v not in [%v, %v]", ErrOutOfRange, scale, MinChannelScale, MaxChannelScale))
	}
	return s.Send(channelCmd(ch, "SCAL "+formatFloat(scale)))
}

// SetChannelPosition sets the vertical position of a channel in
// divisions, between -5 and 5
func (s *Session) SetChannelPosition(ch Channel, position float64) error {
	if err := ch.check(); err != nil {
		return s.reject(err)
	}
	if !within(position, -MaxChannelPosition, MaxChannelPosition) {
		return s.reject(fmt.Errorf("%w: channel position %v not in [%v, %v]", ErrOutOfRange, position, -MaxChannelPosition, MaxChannelPosition))
	}
	return s.Send(channelCmd(ch, "POS "+formatFloat(position)))
}

// SetTriggerMode switches trigger A between auto and normal mode
func (s *Session) SetTriggerMode(mode TriggerMode) error {
	token, ok := mode.token()
	if !ok {
		return s.reject(fmt.Errorf("%w: trigger mode %v", ErrOutOfRange, mode))
	}
	return s.Send("TRIG:A:MODE " + token)
}

// SetMeasurement switches a measurement slot on or off
func (s *Session) SetMeasurement(slot Slot, on bool) error {
	if err := slot.check(); err != nil {
		return s.reject(err)
	}
	return s.Send(measCmd(slot, onOff(on)))
}

// ResetMeasurementStatistics restarts the statistics of a measurement slot
func (s *Session) ResetMeasurementStatistics(slot Slot) error {
	if err := slot.check(); err != nil {
		return s.reject(err)
	}
	return s.Send(measCmd(slot, ":STAT:RES"))
}

// Measurement queries one statistic of a measurement slot
func (s *Session) Measurement(slot Slot, stat Statistic) (float64, error) {
	if err := slot.check(); err != nil {
		return 0, s.reject(err)
	}
	suffix, ok := statSuffixes[stat]
	if !ok {
		return 0, s.reject(fmt.Errorf("%w: statistic %v", ErrOutOfRange, stat))
	}
	return s.queryFloat(measCmd(slot, ":"+suffix))
}

// MeasurementResult queries the current result of a measurement slot
func (s *Session) MeasurementResult(slot Slot) (float64, error) {
	return s.Measurement(slot, StatResult)
}

// MeasurementAverage queries the average of a measurement slot
func (s *Session) MeasurementAverage(slot Slot) (float64, error) {
	return s.Measurement(slot, StatAverage)
}

// MeasurementMax queries the maximum of a measurement slot
func (s *Session) MeasurementMax(slot Slot) (float64, error) {
	return s.Measurement(slot, StatMax)
}

// MeasurementMin queries the minimum of a measurement slot
func (s *Session) MeasurementMin(slot Slot) (float64, error) {
	return s.Measurement(slot, StatMin)
}

// MeasurementStdDev queries the standard deviation of a measurement slot
func (s *Session) MeasurementStdDev(slot Slot) (float64, error) {
	return s.Measurement(slot, StatStdDev)
}

// MeasurementCount queries the number of waveforms the statistics of a
// measurement slot are based on
func (s *Session) MeasurementCount(slot Slot) (float64, error) {
	return s.Measurement(slot, StatCount)
}

func (s *Session) queryFloat(cmd string) (float64, error) {
	resp, err := s.Query(cmd)
	if err != nil {
		return 0, err
	}
	f, err := ParseScalar(resp)
	if err != nil {
		s.Log.WithField("command", cmd).Warnf("Could not parse return value %q", resp)
		return 0, err
	}
	return f, nil
}

// Waveform queries the samples shown on a channel. The transfer ends once
// the instrument was silent for Timeouts.WaveformIdle. If any sample
// does not parse, no samples are returned at all.
func (s *Session) Waveform(ch Channel) ([]float32, error) {
	if err := ch.check(); err != nil {
		return nil, s.reject(err)
	}

	s.cmdLock.Lock()
	defer s.cmdLock.Unlock()

	x := s.begin(KindWaveform, channelCmd(ch, "DATA?"))
	b, err := s.collect(x)
	var samples []float32
	if err == nil {
		samples, err = ParseWaveform(string(b))
		if err != nil {
			x.log.Warnf("%v, abort data query", err)
		}
	}
	s.finish(x, len(b), err)
	return samples, err
}
