package port

import (
	"net/netip"
	"slices"
	"time"
)

// State is the classification of a single probe.
type State string

const (
	StateOpen     State = "open"
	StateClosed   State = "closed"   // refused, reset or unreachable
	StateFiltered State = "filtered" // no answer within the timeout
)

// ScanRequest describes one scan of an inclusive port range on a single target.
// It is built once by NewScanRequest and passed by value to every probe.
type ScanRequest struct {
	Target netip.Addr
	Start  uint16
	End    uint16
}

// Len returns the number of ports covered by the request.
func (r ScanRequest) Len() int {
	if r.Start == 0 || r.Start > r.End {
		return 0
	}
	return int(r.End) - int(r.Start) + 1
}

// Ports returns every port in [Start, End] in ascending order.
func (r ScanRequest) Ports() []uint16 {
	n := r.Len()
	out := make([]uint16, 0, n)
	for p := int(r.Start); n > 0 && p <= int(r.End); p++ {
		out = append(out, uint16(p))
	}
	return out
}

// Outcome is the result of probing one port.
type Outcome struct {
	Target netip.Addr
	Port   uint16
	State  State
	Error  string
	RTT    time.Duration
}

// Open reports whether the port accepted a connection.
func (o Outcome) Open() bool {
	return o.State == StateOpen
}

// Report is the summary of a finished scan.
type Report struct {
	Target    netip.Addr
	Start     uint16
	End       uint16
	Probed    int
	OpenPorts []uint16 // completion order
	Elapsed   time.Duration
}

// Sorted returns the open ports in ascending order without touching OpenPorts.
func (r Report) Sorted() []uint16 {
	out := slices.Clone(r.OpenPorts)
	slices.Sort(out)
	return out
}
