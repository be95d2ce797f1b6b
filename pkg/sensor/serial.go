package sensor

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Serial reads raw level values from a microcontroller that prints one
// reading per line on a serial port. A background goroutine keeps the last
// parsed value; Read never waits for the port.
type Serial struct {
	port io.ReadCloser
	name string

	bits atomic.Uint64
	have atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

// OpenSerial opens port at baud and starts reading lines.
func OpenSerial(port string, baud int) (*Serial, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrNotDetected, "serial port %s: %v", port, err)
	}
	logrus.WithFields(logrus.Fields{
		"port": port,
		"baud": baud,
	}).Info("serial level source opened")
	return newSerial(p, port), nil
}

func newSerial(rc io.ReadCloser, name string) *Serial {
	s := &Serial{port: rc, name: name, done: make(chan struct{})}
	go s.readLoop()
	return s
}

func (s *Serial) readLoop() {
	defer close(s.done)

	scanner := bufio.NewScanner(s.port)
	bad := 0
	for scanner.Scan() {
		v, ok := parseLine(scanner.Text())
		if !ok {
			bad++
			if bad == 1 || bad%100 == 0 {
				logrus.WithFields(logrus.Fields{
					"port": s.name,
					"line": scanner.Text(),
					"bad":  bad,
				}).Debug("ignoring unparsable serial line")
			}
			continue
		}
		s.bits.Store(math.Float64bits(v))
		s.have.Store(true)
	}
	if err := scanner.Err(); err != nil {
		logrus.WithError(err).WithField("port", s.name).Error("serial level source stopped")
	}
}

// parseLine accepts a bare number or a "key=value" / "key: value" pair and
// returns the number.
func parseLine(line string) (float64, bool) {
	line = strings.TrimSpace(line)
	if i := strings.LastIndexAny(line, "=:"); i >= 0 {
		line = strings.TrimSpace(line[i+1:])
	}
	if line == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(line, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (s *Serial) Read() (float64, error) {
	if !s.have.Load() {
		return 0, ErrNoReading
	}
	return math.Float64frombits(s.bits.Load()), nil
}

// Close closes the port and waits for the reader to exit.
func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.port.Close()
		<-s.done
	})
	return err
}
