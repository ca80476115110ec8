package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"ipsniffer/netutil"
	"ipsniffer/output"
	"ipsniffer/port"
	"ipsniffer/publish"
	"ipsniffer/scanner"
)

const (
	exitOK      = 0
	exitUsage   = 2
	exitRuntime = 4
)

type options struct {
	target      string
	start       string
	end         string
	timeout     time.Duration
	concurrency int
	verbose     bool
	outFile     string
	pubsubProj  string
	pubsubTopic string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("ipsniffer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.target, "i", "127.0.0.1", "target IP address or hostname")
	fs.StringVar(&opts.target, "ip-address", "127.0.0.1", "target IP address or hostname")
	fs.StringVar(&opts.start, "s", "1", "first port to scan")
	fs.StringVar(&opts.start, "start", "1", "first port to scan")
	fs.StringVar(&opts.end, "e", "65535", "last port to scan")
	fs.StringVar(&opts.end, "end", "65535", "last port to scan")
	fs.DurationVar(&opts.timeout, "t", scanner.DefaultTimeout, "per-probe timeout")
	fs.DurationVar(&opts.timeout, "timeout", scanner.DefaultTimeout, "per-probe timeout")
	fs.IntVar(&opts.concurrency, "c", 0, "max probes in flight (0 = one per port)")
	fs.IntVar(&opts.concurrency, "concurrency", 0, "max probes in flight (0 = one per port)")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")
	fs.BoolVar(&opts.verbose, "verbose", false, "verbose logging")
	fs.StringVar(&opts.outFile, "o", "", "write a sorted report to this file (overwrite, atomic)")
	fs.StringVar(&opts.outFile, "output", "", "write a sorted report to this file (overwrite, atomic)")
	fs.StringVar(&opts.pubsubProj, "pubsub-project", getEnv("PUBSUB_PROJECT_ID", ""), "publish open ports to Pub/Sub in this project")
	fs.StringVar(&opts.pubsubTopic, "pubsub-topic", getEnv("PUBSUB_TOPIC_ID", ""), "Pub/Sub topic for open ports")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.timeout <= 0 {
		return opts, errors.New("timeout must be positive")
	}
	if (opts.pubsubProj == "") != (opts.pubsubTopic == "") {
		return opts, errors.New("--pubsub-project and --pubsub-topic must be set together")
	}
	return opts, nil
}

// buildRequest validates the port bounds and resolves the target.
func buildRequest(ctx context.Context, opts options) (port.ScanRequest, int, error) {
	start, err := port.ParsePort(opts.start)
	if err != nil {
		return port.ScanRequest{}, exitUsage, fmt.Errorf("invalid start port: %w", err)
	}
	end, err := port.ParsePort(opts.end)
	if err != nil {
		return port.ScanRequest{}, exitUsage, fmt.Errorf("invalid end port: %w", err)
	}
	ip, err := netutil.ResolveTarget(ctx, opts.target)
	if err != nil {
		return port.ScanRequest{}, exitRuntime, fmt.Errorf("failed to resolve target: %w", err)
	}
	req, err := port.NewScanRequest(ip, start, end)
	if err != nil {
		return port.ScanRequest{}, exitUsage, err
	}
	return req, exitOK, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	log := newLogger(stderr, opts.verbose)
	ctx := context.Background()

	req, code, err := buildRequest(ctx, opts)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return code
	}

	fmt.Fprintf(stdout, "Options: target=%s start=%d end=%d timeout=%v concurrency=%d\n",
		req.Target, req.Start, req.End, opts.timeout, opts.concurrency)

	sinks := []scanner.Sink{output.Console{W: stdout}}

	var pub *publish.PubSubSink
	if opts.pubsubProj != "" {
		client, err := pubsub.NewClient(ctx, opts.pubsubProj)
		if err != nil {
			log.WithError(err).Error("pubsub client")
			return exitRuntime
		}
		defer client.Close()

		topic := client.Topic(opts.pubsubTopic)
		ok, err := topic.Exists(ctx)
		if err != nil || !ok {
			log.WithError(err).WithField("topic", opts.pubsubTopic).Error("pubsub topic unavailable")
			return exitRuntime
		}
		pub = publish.NewPubSubSink(topic, log)
		sinks = append(sinks, pub)
		log.WithFields(logrus.Fields{"project": opts.pubsubProj, "topic": opts.pubsubTopic}).Info("publishing open ports")
	}

	mgr := scanner.NewManager(scanner.Config{
		Request:     req,
		Timeout:     opts.timeout,
		Concurrency: opts.concurrency,
		Sinks:       sinks,
		Log:         log,
	})

	rep, err := mgr.Scan(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	output.PrintElapsed(stdout, rep.Elapsed)

	code = exitOK
	if pub != nil {
		if err := pub.Close(ctx); err != nil {
			log.WithError(err).Error("some open ports were not published")
			code = exitRuntime
		}
	}
	if opts.outFile != "" {
		if err := output.WriteReport(opts.outFile, rep); err != nil {
			log.WithError(err).Error("failed to write output file")
			code = exitRuntime
		}
	}
	return code
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd())
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: !tty,
		FullTimestamp: tty,
	})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
