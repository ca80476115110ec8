package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"ipsniffer/port"
)

// Console prints one line per open port as the scan discovers it.
type Console struct {
	W io.Writer
}

// Open implements scanner.Sink.
func (c Console) Open(ctx context.Context, o port.Outcome) error {
	_, err := fmt.Fprintf(c.W, "found port %d\n", o.Port)
	return err
}

// PrintElapsed writes the closing line of a scan.
func PrintElapsed(w io.Writer, d time.Duration) {
	fmt.Fprintf(w, "Elapsed time: %v\n", d)
}

// PrintReport writes a summary of the scan followed by a table of open ports
// in numeric order.
func PrintReport(rep port.Report, w io.Writer) {
	fmt.Fprintf(w, "Target: %s\n", rep.Target)
	fmt.Fprintf(w, "Range: %d-%d (%d probed)\n", rep.Start, rep.End, rep.Probed)
	fmt.Fprintf(w, "Open: %d\n\n", len(rep.OpenPorts))

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT/PROTO\tSTATE")
	for _, p := range rep.Sorted() {
		fmt.Fprintf(tw, "%d/tcp\t%s\n", p, port.StateOpen)
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	PrintElapsed(w, rep.Elapsed)
}

// RenderReport is PrintReport into a byte slice, ready for WriteAtomic.
func RenderReport(rep port.Report) []byte {
	var buf bytes.Buffer
	PrintReport(rep, &buf)
	return buf.Bytes()
}
