package oszi_test

import (
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speters/oszid/oszi"
)

func TestSettings_Encoding(t *testing.T) {
	tests := []struct {
		name string
		op   func(s *oszi.Session) error
		want string
	}{
		{"run", (*oszi.Session).Run, "RUN"},
		{"stop", (*oszi.Session).Stop, "STOP"},
		{"timebase", func(s *oszi.Session) error { return s.SetTimebase(0.001) }, "TIM:SCAL 0.001"},
		{"timebase exponent", func(s *oszi.Session) error { return s.SetTimebase(2e-9) }, "TIM:SCAL 2e-09"},
		{"trigger position", func(s *oszi.Session) error { return s.SetTriggerPosition(-12.5) }, "TIM:POS -12.5"},
		{"rate auto", func(s *oszi.Session) error { return s.SetWaveformRate(oszi.RateAuto) }, "ACQ:WRAT AUTO"},
		{"rate samples", func(s *oszi.Session) error { return s.SetWaveformRate(oszi.RateMaxSamples) }, "ACQ:WRAT MSAM"},
		{"rate waveforms", func(s *oszi.Session) error { return s.SetWaveformRate(oszi.RateMaxWaveforms) }, "ACQ:WRAT MWAV"},
		{"roll on", func(s *oszi.Session) error { return s.SetRollMode(true) }, "TIM:ROLL:ENAB ON"},
		{"roll off", func(s *oszi.Session) error { return s.SetRollMode(false) }, "TIM:ROLL:ENAB OFF"},
		{"channel on", func(s *oszi.Session) error { return s.SetChannel(1, true) }, "CHAN1:STAT ON"},
		{"channel off", func(s *oszi.Session) error { return s.SetChannel(4, false) }, "CHAN4:STAT OFF"},
		{"coupling dc", func(s *oszi.Session) error { return s.SetChannelCoupling(1, oszi.CouplingDC) }, "CHAN1:COUP DC"},
		{"coupling dcl", func(s *oszi.Session) error { return s.SetChannelCoupling(2, oszi.CouplingDCLimit) }, "CHAN2:COUP DCL"},
		{"coupling ac", func(s *oszi.Session) error { return s.SetChannelCoupling(3, oszi.CouplingAC) }, "CHAN3:COUP AC"},
		{"coupling acl", func(s *oszi.Session) error { return s.SetChannelCoupling(4, oszi.CouplingACLimit) }, "CHAN4:COUP ACL"},
		{"coupling gnd", func(s *oszi.Session) error { return s.SetChannelCoupling(1, oszi.CouplingGND) }, "CHAN1:COUP GND"},
		{"scale", func(s *oszi.Session) error { return s.SetChannelScale(2, 1.5) }, "CHAN2:SCAL 1.5"},
		{"position", func(s *oszi.Session) error { return s.SetChannelPosition(3, -4.25) }, "CHAN3:POS -4.25"},
		{"trigger normal", func(s *oszi.Session) error { return s.SetTriggerMode(oszi.TriggerNormal) }, "TRIG:A:MODE NORM"},
		{"trigger auto", func(s *oszi.Session) error { return s.SetTriggerMode(oszi.TriggerAuto) }, "TRIG:A:MODE AUTO"},
		{"measurement on", func(s *oszi.Session) error { return s.SetMeasurement(1, true) }, "MEAS1ON"},
		{"measurement off", func(s *oszi.Session) error { return s.SetMeasurement(6, false) }, "MEAS6OFF"},
		{"measurement reset", func(s *oszi.Session) error { return s.ResetMeasurementStatistics(2) }, "MEAS2:STAT:RES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, port, _ := connect(t, nil)
			require.NoError(t, tt.op(s))
			assert.Equal(t, []string{tt.want}, sent(port))
		})
	}
}

func TestSettings_ChannelOutOfRange(t *testing.T) {
	ops := map[string]func(s *oszi.Session, ch oszi.Channel) error{
		"state":    func(s *oszi.Session, ch oszi.Channel) error { return s.SetChannel(ch, true) },
		"coupling": func(s *oszi.Session, ch oszi.Channel) error { return s.SetChannelCoupling(ch, oszi.CouplingAC) },
		"scale":    func(s *oszi.Session, ch oszi.Channel) error { return s.SetChannelScale(ch, 1) },
		"position": func(s *oszi.Session, ch oszi.Channel) error { return s.SetChannelPosition(ch, 0) },
		"waveform": func(s *oszi.Session, ch oszi.Channel) error { _, err := s.Waveform(ch); return err },
	}
	s, port, hook := connect(t, nil)
	for name, op := range ops {
		for _, ch := range []oszi.Channel{-1, 0, 5, 100} {
			err := op(s, ch)
			assert.True(t, errors.Is(err, oszi.ErrOutOfRange), "%s(%d) err = %v", name, ch, err)
			assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
		}
	}
	assert.Empty(t, sent(port), "rejected operations must not write")
	assert.True(t, s.IsConnected())
}

func TestSettings_SlotOutOfRange(t *testing.T) {
	ops := map[string]func(s *oszi.Session, slot oszi.Slot) error{
		"state": func(s *oszi.Session, slot oszi.Slot) error { return s.SetMeasurement(slot, true) },
		"reset": (*oszi.Session).ResetMeasurementStatistics,
		"result": func(s *oszi.Session, slot oszi.Slot) error {
			_, err := s.MeasurementResult(slot)
			return err
		},
		"average": func(s *oszi.Session, slot oszi.Slot) error {
			_, err := s.MeasurementAverage(slot)
			return err
		},
		"max": func(s *oszi.Session, slot oszi.Slot) error {
			_, err := s.MeasurementMax(slot)
			return err
		},
		"min": func(s *oszi.Session, slot oszi.Slot) error {
			_, err := s.MeasurementMin(slot)
			return err
		},
		"stddev": func(s *oszi.Session, slot oszi.Slot) error {
			_, err := s.MeasurementStdDev(slot)
			return err
		},
		"count": func(s *oszi.Session, slot oszi.Slot) error {
			_, err := s.MeasurementCount(slot)
			return err
		},
	}
	s, port, _ := connect(t, nil)
	for name, op := range ops {
		for _, slot := range []oszi.Slot{-3, 0, 7, 42} {
			err := op(s, slot)
			assert.True(t, errors.Is(err, oszi.ErrOutOfRange), "%s(%d) err = %v", name, slot, err)
		}
	}
	assert.Empty(t, sent(port))
}

func TestSettings_ValueOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		op   func(s *oszi.Session) error
	}{
		{"scale too small", func(s *oszi.Session) error { return s.SetChannelScale(1, 0.0009) }},
		{"scale too large", func(s *oszi.Session) error { return s.SetChannelScale(1, 10.01) }},
		{"scale NaN", func(s *oszi.Session) error { return s.SetChannelScale(1, math.NaN()) }},
		{"position too low", func(s *oszi.Session) error { return s.SetChannelPosition(1, -5.01) }},
		{"position too high", func(s *oszi.Session) error { return s.SetChannelPosition(1, 5.01) }},
		{"trigger position too low", func(s *oszi.Session) error { return s.SetTriggerPosition(-500.5) }},
		{"trigger position too high", func(s *oszi.Session) error { return s.SetTriggerPosition(500.5) }},
		{"trigger position NaN", func(s *oszi.Session) error { return s.SetTriggerPosition(math.NaN()) }},
		{"timebase zero", func(s *oszi.Session) error { return s.SetTimebase(0) }},
		{"timebase negative", func(s *oszi.Session) error { return s.SetTimebase(-1e-3) }},
		{"timebase infinite", func(s *oszi.Session) error { return s.SetTimebase(math.Inf(1)) }},
		{"unknown coupling", func(s *oszi.Session) error { return s.SetChannelCoupling(1, oszi.Coupling(9)) }},
		{"unknown rate", func(s *oszi.Session) error { return s.SetWaveformRate(oszi.WaveformRate(9)) }},
		{"unknown trigger mode", func(s *oszi.Session) error { return s.SetTriggerMode(oszi.TriggerMode(9)) }},
		{"unknown statistic", func(s *oszi.Session) error { _, err := s.Measurement(1, oszi.Statistic(9)); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, port, _ := connect(t, nil)
			err := tt.op(s)
			assert.True(t, errors.Is(err, oszi.ErrOutOfRange), "err = %v", err)
			assert.Empty(t, sent(port))
		})
	}
}

func TestSettings_RangeBoundsAreInclusive(t *testing.T) {
	s, port, _ := connect(t, nil)

	require.NoError(t, s.SetChannelScale(1, 0.001))
	require.NoError(t, s.SetChannelScale(1, 10))
	require.NoError(t, s.SetChannelPosition(1, -5))
	require.NoError(t, s.SetChannelPosition(1, 5))
	require.NoError(t, s.SetTriggerPosition(-500))
	require.NoError(t, s.SetTriggerPosition(500))
	require.NoError(t, s.SetTriggerPosition(0))

	assert.Equal(t, []string{
		"CHAN1:SCAL 0.001",
		"CHAN1:SCAL 10",
		"CHAN1:POS -5",
		"CHAN1:POS 5",
		"TIM:POS -500",
		"TIM:POS 500",
		"TIM:POS 0",
	}, sent(port))
}

func TestMeasurements(t *testing.T) {
	s, port, _ := connect(t, map[string][]string{
		"MEAS1:RES?":      {"1.25E+00\n"},
		"MEAS2:RES:AVG?":  {"-3.5E-03\n"},
		"MEAS3:RES:PPE?":  {"4.0\n"},
		"MEAS4:RES:NPE?":  {"-4.0\n"},
		"MEAS5:RES:STDD?": {"1e-6\n"},
		"MEAS6:RES:WFMC?": {"+128\n"},
		"TIM:RAT?":        {"5E-9\n"},
		"MEAS1:RES:STDD?": {"0\n"},
	})

	tests := []struct {
		op   func() (float64, error)
		want float64
	}{
		{func() (float64, error) { return s.MeasurementResult(1) }, 1.25},
		{func() (float64, error) { return s.MeasurementAverage(2) }, -3.5e-3},
		{func() (float64, error) { return s.MeasurementMax(3) }, 4},
		{func() (float64, error) { return s.MeasurementMin(4) }, -4},
		{func() (float64, error) { return s.MeasurementStdDev(5) }, 1e-6},
		{func() (float64, error) { return s.MeasurementCount(6) }, 128},
		{s.AcquisitionTime, 5e-9},
		{func() (float64, error) { return s.Measurement(1, oszi.StatStdDev) }, 0},
	}
	for i, tt := range tests {
		got, err := tt.op()
		require.NoError(t, err, "query %d", i)
		assert.InDelta(t, tt.want, got, 1e-15, "query %d", i)
	}
	assert.Equal(t, []string{
		"MEAS1:RES?", "MEAS2:RES:AVG?", "MEAS3:RES:PPE?", "MEAS4:RES:NPE?",
		"MEAS5:RES:STDD?", "MEAS6:RES:WFMC?", "TIM:RAT?", "MEAS1:RES:STDD?",
	}, sent(port))
}

func TestMeasurements_UnparsableAnswerYieldsZero(t *testing.T) {
	s, _, hook := connect(t, map[string][]string{
		"MEAS1:RES:AVG?": {"ERR\n"},
	})

	v, err := s.MeasurementAverage(1)
	assert.Zero(t, v)
	assert.True(t, errors.Is(err, oszi.ErrMalformed), "err = %v", err)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.True(t, s.IsConnected(), "a bad value does not drop the connection")
}
