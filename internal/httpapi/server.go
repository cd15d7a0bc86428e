// Package httpapi exposes an oscilloscope session as a JSON HTTP API
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/speters/oszid/oszi"
)

// Instrument is the part of *oszi.Session served by the API
type Instrument interface {
	IsConnected() bool
	Identity() string
	Link() string
	Reconnect() error

	Run() error
	Stop() error
	SetTimebase(scale float64) error
	AcquisitionTime() (float64, error)
	SetRollMode(on bool) error
	SetTriggerPosition(position float64) error
	SetTriggerMode(mode oszi.TriggerMode) error
	SetWaveformRate(rate oszi.WaveformRate) error

	SetChannel(ch oszi.Channel, on bool) error
	SetChannelCoupling(ch oszi.Channel, coupling oszi.Coupling) error
	SetChannelScale(ch oszi.Channel, scale float64) error
	SetChannelPosition(ch oszi.Channel, position float64) error
	Waveform(ch oszi.Channel) ([]float32, error)

	SetMeasurement(slot oszi.Slot, on bool) error
	ResetMeasurementStatistics(slot oszi.Slot) error
	Measurement(slot oszi.Slot, stat oszi.Statistic) (float64, error)

	Send(command string) error
	Query(command string) (string, error)
}

// Version is reported by GET /version
type Version struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
}

// Server routes API requests to an Instrument
type Server struct {
	inst    Instrument
	version Version
	log     log.FieldLogger
	router  *mux.Router
}

// errBadRequest marks request bodies or path values that can not be decoded
var errBadRequest = errors.New("bad request")

// New builds the router. metrics is mounted at /metrics if not nil.
func New(inst Instrument, version Version, metrics http.Handler, logger log.FieldLogger) *Server {
	s := &Server{
		inst:    inst,
		version: version,
		log:     logger,
		router:  mux.NewRouter(),
	}

	r := s.router
	r.HandleFunc("/version", s.versionInfo).Methods("GET")
	r.HandleFunc("/status", s.status).Methods("GET")
	r.HandleFunc("/reconnect", s.action(inst.Reconnect)).Methods("POST")
	r.HandleFunc("/run", s.action(inst.Run)).Methods("POST")
	r.HandleFunc("/stop", s.action(inst.Stop)).Methods("POST")

	r.HandleFunc("/timebase", s.setValue(inst.SetTimebase)).Methods("PUT")
	r.HandleFunc("/timebase/acquisition-time", s.getValue(inst.AcquisitionTime)).Methods("GET")
	r.HandleFunc("/timebase/roll", s.setEnabled(inst.SetRollMode)).Methods("PUT")
	r.HandleFunc("/trigger/position", s.setValue(inst.SetTriggerPosition)).Methods("PUT")
	r.HandleFunc("/trigger/mode", s.setTriggerMode).Methods("PUT")
	r.HandleFunc("/acquisition/rate", s.setWaveformRate).Methods("PUT")

	r.HandleFunc("/channel/{n:[0-9]+}/state", s.channelEnabled(inst.SetChannel)).Methods("PUT")
	r.HandleFunc("/channel/{n:[0-9]+}/coupling", s.setCoupling).Methods("PUT")
	r.HandleFunc("/channel/{n:[0-9]+}/scale", s.channelValue(inst.SetChannelScale)).Methods("PUT")
	r.HandleFunc("/channel/{n:[0-9]+}/position", s.channelValue(inst.SetChannelPosition)).Methods("PUT")
	r.HandleFunc("/channel/{n:[0-9]+}/waveform", s.getWaveform).Methods("GET")

	r.HandleFunc("/measurement/{n:[0-9]+}/state", s.setMeasurement).Methods("PUT")
	r.HandleFunc("/measurement/{n:[0-9]+}/reset", s.resetMeasurement).Methods("POST")
	r.HandleFunc("/measurement/{n:[0-9]+}/{stat}", s.getMeasurement).Methods("GET")

	r.HandleFunc("/command", s.command).Methods("POST")
	r.HandleFunc("/query", s.query).Methods("POST")

	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type valueBody struct {
	Value *float64 `json:"value"`
}

type enabledBody struct {
	Enabled *bool `json:"enabled"`
}

type commandBody struct {
	Command string `json:"command"`
}

// writeJSON encodes v before sending the header, so an unencodable
// value becomes a 500 with a JSON error body
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	j, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		code = http.StatusInternalServerError
		j, _ = json.Marshal(struct {
			Error string `json:"error"`
		}{err.Error()})
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	w.Write(append(j, '\n'))
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("\"OK\"\n"))
}

// statusCode maps session errors to HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, oszi.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, oszi.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, oszi.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, oszi.ErrMalformed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	s.log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path, "status": code}).Warn(err)
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func decodeValue(r *http.Request) (float64, error) {
	var b valueBody
	if err := decode(r, &b); err != nil {
		return 0, err
	}
	if b.Value == nil {
		return 0, errors.Join(errBadRequest, errors.New(`missing "value"`))
	}
	return *b.Value, nil
}

func decodeEnabled(r *http.Request) (bool, error) {
	var b enabledBody
	if err := decode(r, &b); err != nil {
		return false, err
	}
	if b.Enabled == nil {
		return false, errors.Join(errBadRequest, errors.New(`missing "enabled"`))
	}
	return *b.Enabled, nil
}

// decodeField reads the string field name of a JSON object body
func decodeField(r *http.Request, name string) (string, error) {
	var b map[string]string
	if err := decode(r, &b); err != nil {
		return "", err
	}
	v, ok := b[name]
	if !ok {
		return "", errors.Join(errBadRequest, errors.New(`missing "`+name+`"`))
	}
	return v, nil
}

func pathNumber(r *http.Request) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		return 0, errors.Join(errBadRequest, err)
	}
	return n, nil
}

func (s *Server) versionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Connected bool   `json:"connected"`
		Identity  string `json:"identity"`
		Link      string `json:"link"`
	}{s.inst.IsConnected(), strings.TrimSpace(s.inst.Identity()), s.inst.Link()})
}

func (s *Server) action(op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(); err != nil {
			s.fail(w, r, err)
			return
		}
		writeOK(w)
	}
}

func (s *Server) setValue(op func(float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := decodeValue(r)
		if err == nil {
			err = op(v)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeOK(w)
	}
}

func (s *Server) getValue(op func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := op()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, valueBody{Value: &v})
	}
}

func (s *Server) setEnabled(op func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		on, err := decodeEnabled(r)
		if err == nil {
			err = op(on)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeOK(w)
	}
}

func (s *Server) setTriggerMode(w http.ResponseWriter, r *http.Request) {
	name, err := decodeField(r, "mode")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	mode, err := oszi.ParseTriggerMode(name)
	if err == nil {
		err = s.inst.SetTriggerMode(mode)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) setWaveformRate(w http.ResponseWriter, r *http.Request) {
	name, err := decodeField(r, "rate")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rate, err := oszi.ParseWaveformRate(name)
	if err == nil {
		err = s.inst.SetWaveformRate(rate)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) channelEnabled(op func(oszi.Channel, bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := pathNumber(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		on, err := decodeEnabled(r)
		if err == nil {
			err = op(oszi.Channel(n), on)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeOK(w)
	}
}

func (s *Server) channelValue(op func(oszi.Channel, float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := pathNumber(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		v, err := decodeValue(r)
		if err == nil {
			err = op(oszi.Channel(n), v)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeOK(w)
	}
}

func (s *Server) setCoupling(w http.ResponseWriter, r *http.Request) {
	n, err := pathNumber(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name, err := decodeField(r, "coupling")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := oszi.ParseCoupling(name)
	if err == nil {
		err = s.inst.SetChannelCoupling(oszi.Channel(n), c)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) getWaveform(w http.ResponseWriter, r *http.Request) {
	n, err := pathNumber(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	samples, err := s.inst.Waveform(oszi.Channel(n))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Channel int          `json:"channel"`
		Samples []float32    `json:"samples"`
		Summary oszi.Summary `json:"summary"`
	}{n, samples, oszi.Summarize(samples)})
}

func (s *Server) setMeasurement(w http.ResponseWriter, r *http.Request) {
	n, err := pathNumber(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	on, err := decodeEnabled(r)
	if err == nil {
		err = s.inst.SetMeasurement(oszi.Slot(n), on)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) resetMeasurement(w http.ResponseWriter, r *http.Request) {
	n, err := pathNumber(r)
	if err == nil {
		err = s.inst.ResetMeasurementStatistics(oszi.Slot(n))
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) getMeasurement(w http.ResponseWriter, r *http.Request) {
	n, err := pathNumber(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stat, err := oszi.ParseStatistic(mux.Vars(r)["stat"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.inst.Measurement(oszi.Slot(n), stat)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Slot      int            `json:"slot"`
		Statistic oszi.Statistic `json:"statistic"`
		Value     float64        `json:"value"`
	}{n, stat, v})
}

func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	var b commandBody
	err := decode(r, &b)
	if err == nil && b.Command == "" {
		err = errors.Join(errBadRequest, errors.New(`missing "command"`))
	}
	if err == nil {
		err = s.inst.Send(b.Command)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var b commandBody
	err := decode(r, &b)
	if err == nil && b.Command == "" {
		err = errors.Join(errBadRequest, errors.New(`missing "command"`))
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.inst.Query(b.Command)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Command  string `json:"command"`
		Response string `json:"response"`
	}{b.Command, strings.TrimRight(resp, "\r\n")})
}
