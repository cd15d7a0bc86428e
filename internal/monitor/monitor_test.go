package monitor

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speters/oszid/oszi"
	"github.com/speters/oszid/oszi/oszitest"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeOK},
		{fmt.Errorf("query %q: %w", "TIM:RAT?", oszi.ErrTimeout), OutcomeTimeout},
		{oszi.ErrNotConnected, OutcomeNotConnected},
		{fmt.Errorf("parse: %w", oszi.ErrMalformed), OutcomeMalformed},
		{oszi.ErrOutOfRange, OutcomeOutOfRange},
		{errors.New("broken pipe"), OutcomeError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}

func TestObserveExchange(t *testing.T) {
	m := New()
	m.ObserveExchange(oszi.Exchange{Kind: oszi.KindQuery, Bytes: 10, Duration: 20 * time.Millisecond})
	m.ObserveExchange(oszi.Exchange{Kind: oszi.KindQuery, Err: oszi.ErrTimeout, Duration: time.Second})
	m.ObserveExchange(oszi.Exchange{Kind: oszi.KindWaveform, Bytes: 4096, Duration: 5 * time.Second})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("query", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("query", OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("waveform", OutcomeOK)))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.bytes.WithLabelValues("query")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(m.bytes.WithLabelValues("waveform")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestWatchSession(t *testing.T) {
	m := New()
	port := oszitest.NewPort(oszitest.Scope("HAMEG,HMO3524,1,05.886", nil))
	s := oszi.NewSession()
	s.Opener = port.Opener()
	s.Observer = m
	m.WatchSession(s)

	expected := `
# HELP oszi_connected 1 if the instrument is connected and identified.
# TYPE oszi_connected gauge
oszi_connected %d
`
	require.NoError(t, testutil.GatherAndCompare(m.registry,
		strings.NewReader(fmt.Sprintf(expected, 0)), "oszi_connected"))

	require.NoError(t, s.Connect("/dev/ttyUSB0", 115200))
	require.NoError(t, testutil.GatherAndCompare(m.registry,
		strings.NewReader(fmt.Sprintf(expected, 1)), "oszi_connected"))

	require.NoError(t, s.Close())
	require.NoError(t, testutil.GatherAndCompare(m.registry,
		strings.NewReader(fmt.Sprintf(expected, 0)), "oszi_connected"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("handshake", OutcomeOK)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveExchange(oszi.Exchange{Kind: oszi.KindSend})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `oszi_exchanges_total{kind="send",outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
