package output

import (
	"bytes"
	"context"
	"net/netip"
	"strings"
	"testing"
	"time"

	"ipsniffer/port"
)

func TestConsoleOpen(t *testing.T) {
	var buf bytes.Buffer
	c := Console{W: &buf}
	for _, p := range []uint16{8001, 22} {
		if err := c.Open(context.Background(), port.Outcome{Port: p, State: port.StateOpen}); err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	PrintElapsed(&buf, 1500*time.Millisecond)

	want := "found port 8001\nfound port 22\nElapsed time: 1.5s\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestRenderReport(t *testing.T) {
	rep := port.Report{
		Target:    netip.MustParseAddr("127.0.0.1"),
		Start:     8000,
		End:       8002,
		Probed:    3,
		OpenPorts: []uint16{8002, 8001},
		Elapsed:   2 * time.Second,
	}
	out := string(RenderReport(rep))

	for _, want := range []string{
		"Target: 127.0.0.1\n",
		"Range: 8000-8002 (3 probed)\n",
		"Open: 2\n",
		"PORT/PROTO  STATE\n",
		"Elapsed time: 2s\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "8001/tcp") > strings.Index(out, "8002/tcp") {
		t.Fatalf("table not sorted:\n%s", out)
	}
}
