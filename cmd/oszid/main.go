package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/speters/oszid/internal/config"
	"github.com/speters/oszid/internal/httpapi"
	"github.com/speters/oszid/internal/monitor"
	"github.com/speters/oszid/oszi"
)

var configFile = flag.String("f", "", "read settings from YAML `file`")
var connTo = flag.String("c", "", "connection string, use socket://[host]:[port] for TCP or [serialDevice] for direct serial connection")
var baud = flag.Int("b", 0, "baud rate of the serial connection (default 115200)")
var driver = flag.String("driver", "", "serial driver, tarm or bugst")
var httpServe = flag.String("s", "", "start http server at [bindtohost][:]port")
var verbose = flag.Bool("v", false, "verbose logging")

var rawQuery = flag.String("q", "", "send `query` and print the answer")
var dumpChannel = flag.Int("w", 0, "print the waveform of `channel`")
var measSlot = flag.Int("m", 0, "print all statistics of measurement `slot`")

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return nil, err
		}
	}

	if *connTo != "" {
		cfg.Link = *connTo
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *httpServe != "" {
		cfg.HTTP = *httpServe
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func waveform(sess *oszi.Session, ch int) error {
	samples, err := sess.Waveform(oszi.Channel(ch))
	if err != nil {
		return err
	}
	for _, v := range samples {
		fmt.Println(v)
	}
	sum := oszi.Summarize(samples)
	log.Infof("%d samples, min %g, max %g, mean %g, rms %g", sum.Count, sum.Min, sum.Max, sum.Mean, sum.RMS)
	return nil
}

func measurementReport(sess *oszi.Session, slot int) error {
	for _, stat := range oszi.Statistics {
		v, err := sess.Measurement(oszi.Slot(slot), stat)
		if err != nil {
			return fmt.Errorf("%v: %w", stat, err)
		}
		fmt.Printf("%-8s %g\n", stat, v)
	}
	return nil
}

// cli runs the one-shot modes, it returns false if none was requested
func cli(sess *oszi.Session) (bool, error) {
	switch {
	case *rawQuery != "":
		resp, err := sess.Query(*rawQuery)
		if err == nil {
			fmt.Println(strings.TrimSpace(resp))
		}
		return true, err
	case *dumpChannel != 0:
		return true, waveform(sess, *dumpChannel)
	case *measSlot != 0:
		return true, measurementReport(sess, *measSlot)
	}
	return false, nil
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(level)
	log.SetFormatter(cfg.Formatter())

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	opener, err := oszi.NewOpener(cfg.Driver)
	if err != nil {
		log.Fatal(err)
	}
	mon := monitor.New()

	sess := oszi.NewSession()
	sess.Timeouts = cfg.Timeouts
	sess.Opener = opener
	sess.Observer = mon
	mon.WatchSession(sess)

	done := make(chan os.Signal, 1)

	signal.Notify(done,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func() {
		<-done

		sess.Close()
		if *memprofile != "" {
			f, err := os.Create(*memprofile)
			if err != nil {
				log.Fatal("could not create memory profile: ", err)
			}
			runtime.GC() // get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatal("could not write memory profile: ", err)
			}
			f.Close()
		}
		if *cpuprofile != "" {
			pprof.StopCPUProfile()
		}
		os.Exit(0)
	}()

	connErr := sess.Connect(cfg.Link, cfg.Baud)

	if ok, err := cli(sess); ok {
		sess.Close()
		if connErr != nil {
			log.Fatal(connErr)
		}
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	if cfg.HTTP == "" {
		if connErr != nil {
			log.Fatal(connErr)
		}
		log.Info("No http server address given, nothing to do")
		sess.Close()
		return
	}

	api := httpapi.New(sess, httpapi.Version{Version: buildVersion, BuildDate: buildDate}, mon.Handler(), log.StandardLogger())

	// accept :[portnum] as well as [portnum]
	addr := cfg.HTTP
	if i, err := strconv.Atoi(addr); err == nil {
		addr = fmt.Sprintf(":%d", i)
	}

	h := &http.Server{Addr: addr, Handler: api, ReadHeaderTimeout: 10 * time.Second}
	go func() { log.Fatal(h.ListenAndServe()) }()
	log.Infof("Serving http on %v", addr)

	for {
		<-sess.Done()
		<-time.After(cfg.ReconnectDelay)
		if err := sess.Reconnect(); err != nil {
			log.Error(err)
		} else {
			log.Infof("Reconnected")
		}
	}
}
