package oszi

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// Opener opens the raw connection to the instrument named by link.
// Session uses it on every Connect and Reconnect.
type Opener func(link string, baud int) (io.ReadWriteCloser, error)

// Serial drivers understood by NewOpener
const (
	DriverTarm  = "tarm"
	DriverBugst = "bugst"
)

const (
	serialReadTimeout = 100 * time.Millisecond
	dialTimeout       = 5 * time.Second
	keepAlivePeriod   = 30 * time.Second
)

// DefaultOpener opens serial devices with the tarm driver
var DefaultOpener Opener = func(link string, baud int) (io.ReadWriteCloser, error) {
	return openLink(link, baud, openTarm)
}

// NewOpener returns an Opener using the named serial driver. Links of
// the form socket://host:port or tcp://host:port connect to a serial
// to network bridge instead, a plain device path or file:// URL opens
// the serial device.
func NewOpener(driver string) (Opener, error) {
	var openSerial func(string, int) (io.ReadWriteCloser, error)
	switch driver {
	case "", DriverTarm:
		openSerial = openTarm
	case DriverBugst:
		openSerial = openBugst
	default:
		return nil, fmt.Errorf("unknown serial driver %q", driver)
	}
	return func(link string, baud int) (io.ReadWriteCloser, error) {
		return openLink(link, baud, openSerial)
	}, nil
}

func openLink(link string, baud int, openSerial func(string, int) (io.ReadWriteCloser, error)) (io.ReadWriteCloser, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "socket", "tcp":
		conn, err := net.DialTimeout("tcp", u.Host, dialTimeout)
		if err != nil {
			return nil, err
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetKeepAlive(true)
			tc.SetKeepAlivePeriod(keepAlivePeriod)
		}
		return conn, nil
	case "file", "":
		if baud <= 0 {
			return nil, fmt.Errorf("invalid baud rate %v", baud)
		}
		return openSerial(u.Path, baud)
	}
	return nil, fmt.Errorf("can not find a valid connection string in %q", link)
}

// tarmPort reports an expired read timeout as an empty read instead of io.EOF
type tarmPort struct {
	*serial.Port
}

func (p tarmPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

func openTarm(name string, baud int) (io.ReadWriteCloser, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: serialReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return tarmPort{p}, nil
}

func openBugst(name string, baud int) (io.ReadWriteCloser, error) {
	p, err := bugst.Open(name, &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(serialReadTimeout); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}
