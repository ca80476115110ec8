package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"ipsniffer/port"
)

// Sink receives open ports as soon as they are known.
// The Manager calls sinks from a single goroutine, in completion order.
type Sink interface {
	Open(ctx context.Context, o port.Outcome) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, o port.Outcome) error

func (f SinkFunc) Open(ctx context.Context, o port.Outcome) error {
	return f(ctx, o)
}

// Config contains runtime configuration for the Manager.
type Config struct {
	Request port.ScanRequest
	Timeout time.Duration

	// Concurrency caps in-flight probes. Zero or less launches every probe at once.
	Concurrency int

	// Prober defaults to a TCPProber using Timeout.
	Prober Prober
	Sinks  []Sink
	Log    logrus.FieldLogger
}

// Manager fans a scan request out into one probe per port and collects the outcomes.
type Manager struct {
	cfg    Config
	prober Prober
	log    logrus.FieldLogger
}

// NewManager creates a new Manager with the provided config.
func NewManager(cfg Config) *Manager {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	prober := cfg.Prober
	if prober == nil {
		prober = TCPProber{Timeout: cfg.Timeout, Log: log}
	}
	return &Manager{cfg: cfg, prober: prober, log: log}
}

// Run launches one probe per port and returns the outcome channel. Exactly
// Request.Len() outcomes are delivered, in completion order, and the channel is
// closed once the last probe has finished. An invalid request is rejected
// before anything is launched.
func (m *Manager) Run(ctx context.Context) (<-chan port.Outcome, error) {
	req := m.cfg.Request
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan request: %w", err)
	}

	// Sized to the range so a probe never waits on the collector.
	results := make(chan port.Outcome, req.Len())

	var sem *semaphore.Weighted
	if m.cfg.Concurrency > 0 {
		sem = semaphore.NewWeighted(int64(m.cfg.Concurrency))
	}

	go func() {
		var g errgroup.Group
		for _, p := range req.Ports() {
			p := p
			if sem != nil {
				// Background: every port must still be probed after ctx is done.
				_ = sem.Acquire(context.Background(), 1)
			}
			g.Go(func() error {
				if sem != nil {
					defer sem.Release(1)
				}
				results <- m.prober.Probe(ctx, req.Target, p)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	return results, nil
}

// Scan runs the request to completion, forwarding each open port to the
// configured sinks as it arrives, and returns the final report.
func (m *Manager) Scan(ctx context.Context) (port.Report, error) {
	req := m.cfg.Request
	start := time.Now()

	results, err := m.Run(ctx)
	if err != nil {
		return port.Report{}, err
	}

	log := m.log.WithField("target", req.Target.String())
	log.WithFields(logrus.Fields{
		"start":       req.Start,
		"end":         req.End,
		"probes":      req.Len(),
		"concurrency": m.cfg.Concurrency,
	}).Debug("scan started")

	rep := port.Report{Target: req.Target, Start: req.Start, End: req.End}
	for res := range results {
		rep.Probed++
		if !res.Open() {
			continue
		}
		rep.OpenPorts = append(rep.OpenPorts, res.Port)
		for _, s := range m.cfg.Sinks {
			if err := s.Open(ctx, res); err != nil {
				log.WithError(err).WithField("port", res.Port).Warn("sink rejected open port")
			}
		}
	}
	rep.Elapsed = time.Since(start)

	log.WithFields(logrus.Fields{
		"probed":  rep.Probed,
		"open":    len(rep.OpenPorts),
		"elapsed": rep.Elapsed,
	}).Debug("scan finished")
	return rep, nil
}
