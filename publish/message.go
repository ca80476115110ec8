package publish

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"

	"ipsniffer/port"
)

// DataVersion 2 carries the response as a plain string in data.response_str.
const DataVersion = 2

// ScanMessage is the JSON payload published for every open port.
type ScanMessage struct {
	IP          string          `json:"ip"`
	Port        uint32          `json:"port"`
	Service     string          `json:"service"`
	Timestamp   int64           `json:"timestamp"`
	DataVersion int             `json:"data_version"`
	Data        json.RawMessage `json:"data"`
}

type responseData struct {
	ResponseStr string `json:"response_str"`
}

// NewMessage builds the Pub/Sub message for one outcome.
func NewMessage(o port.Outcome, at time.Time) (*pubsub.Message, error) {
	data, err := json.Marshal(responseData{ResponseStr: string(o.State)})
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	raw, err := json.Marshal(ScanMessage{
		IP:          o.Target.String(),
		Port:        uint32(o.Port),
		Service:     "tcp",
		Timestamp:   at.Unix(),
		DataVersion: DataVersion,
		Data:        data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal scan: %w", err)
	}
	return &pubsub.Message{
		Data: raw,
		Attributes: map[string]string{
			"target": o.Target.String(),
			"state":  string(o.State),
			"rtt_ms": strconv.FormatInt(o.RTT.Milliseconds(), 10),
		},
	}, nil
}
