package scanner

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"ipsniffer/port"
)

// DefaultTimeout is the per-probe budget used when none is configured.
const DefaultTimeout = 5 * time.Second

// Prober classifies a single port. Implementations must be safe for concurrent use.
type Prober interface {
	Probe(ctx context.Context, target netip.Addr, p uint16) port.Outcome
}

// TCPProber performs a TCP connect probe. The zero value is usable.
type TCPProber struct {
	Timeout time.Duration
	Log     logrus.FieldLogger
}

// Probe dials target:p and reports open, closed or filtered. Dial errors are
// folded into the outcome and never returned.
func (t TCPProber) Probe(ctx context.Context, target netip.Addr, p uint16) port.Outcome {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	addr := netip.AddrPortFrom(target, p).String()
	d := net.Dialer{Timeout: timeout, KeepAlive: -1}

	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", addr)
	res := port.Outcome{
		Target: target,
		Port:   p,
		State:  port.StateFiltered,
		RTT:    time.Since(start),
	}

	log := t.logger().WithFields(logrus.Fields{"target": target.String(), "port": p})

	if err == nil {
		res.State = port.StateOpen
		_ = conn.Close()
		log.WithField("rtt", res.RTT).Debug("tcp connect success")
		return res
	}

	res.Error = err.Error()
	switch {
	case isTimeout(err):
		res.State = port.StateFiltered
		res.Error = "timeout"
	case isConnRefused(err):
		res.State = port.StateClosed
	}
	log.WithField("state", res.State).Debugf("tcp probe: %v", err)
	return res
}

func (t TCPProber) logger() logrus.FieldLogger {
	if t.Log != nil {
		return t.Log
	}
	return logrus.StandardLogger()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isConnRefused covers an active rejection: RST or an ICMP unreachable.
func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
