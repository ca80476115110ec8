package port

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

const (
	MinPort = 1
	MaxPort = 65535
)

var (
	ErrNotANumber    = errors.New("port isn't a number")
	ErrInvalidPort   = errors.New("invalid port number")
	ErrInvalidRange  = errors.New("invalid port range")
	ErrInvalidTarget = errors.New("invalid target address")
)

// ParsePort parses a single port number. Accepted values are 1..65535.
func ParsePort(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
		}
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	if v < MinPort {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return uint16(v), nil
}

// NewScanRequest validates the triple and returns an immutable request.
func NewScanRequest(target netip.Addr, start, end uint16) (ScanRequest, error) {
	if !target.IsValid() {
		return ScanRequest{}, ErrInvalidTarget
	}
	if start < MinPort || end < MinPort {
		return ScanRequest{}, fmt.Errorf("%w: ports must be in %d..%d", ErrInvalidPort, MinPort, MaxPort)
	}
	if start > end {
		return ScanRequest{}, fmt.Errorf("%w: start %d greater than end %d", ErrInvalidRange, start, end)
	}
	return ScanRequest{Target: target.Unmap(), Start: start, End: end}, nil
}

// Validate re-checks the request invariant. A zero ScanRequest is invalid.
func (r ScanRequest) Validate() error {
	_, err := NewScanRequest(r.Target, r.Start, r.End)
	return err
}
