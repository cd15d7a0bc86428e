package oszi

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Separators of the line oriented command language
const (
	lineTerminator = '\n'
	fieldSeparator = ","
)

// formatFloat renders v with a period as decimal separator and without
// grouping, using the shortest representation that round-trips.
// strconv never consults the host locale.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func onOff(state bool) string {
	if state {
		return "ON"
	}
	return "OFF"
}

func channelCmd(ch Channel, suffix string) string {
	return "CHAN" + strconv.Itoa(int(ch)) + ":" + suffix
}

func measCmd(slot Slot, suffix string) string {
	return "MEAS" + strconv.Itoa(int(slot)) + suffix
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ParseScalar decodes a numeric response like "+1.234E-03\n". Surrounding
// whitespace (including the line terminator) is ignored, a leading sign
// and scientific notation are accepted. NaN and infinities are not
// measurement values. On failure 0 and an error wrapping ErrMalformed
// are returned.
func ParseScalar(s string) (float64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, fmt.Errorf("%w: empty value", ErrMalformed)
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || !finite(f) {
		return 0, fmt.Errorf("%w: could not parse %q to float", ErrMalformed, t)
	}
	return f, nil
}

// ParseWaveform decodes a comma separated list of samples. Sample order
// is kept. If a single field does not parse, nil and an error wrapping
// ErrMalformed are returned: partial waveforms are never handed out.
func ParseWaveform(s string) ([]float32, error) {
	fields := strings.Split(s, fieldSeparator)
	samples := make([]float32, 0, len(fields))
	for i, field := range fields {
		f, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil || !finite(f) {
			return nil, fmt.Errorf("%w: could not parse sample %d %q to float", ErrMalformed, i, field)
		}
		samples = append(samples, float32(f))
	}
	return samples, nil
}
