package publish

import (
	"context"
	"encoding/json"
	"net/netip"
	"sort"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"ipsniffer/port"
)

// newTestClient starts an in-memory Pub/Sub server and returns a client bound to it.
func newTestClient(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestNewMessage(t *testing.T) {
	at := time.Unix(1700000000, 0)
	o := port.Outcome{
		Target: netip.MustParseAddr("127.0.0.1"),
		Port:   8001,
		State:  port.StateOpen,
		RTT:    3 * time.Millisecond,
	}

	msg, err := NewMessage(o, at)
	require.NoError(t, err)

	var got ScanMessage
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "127.0.0.1", got.IP)
	assert.EqualValues(t, 8001, got.Port)
	assert.Equal(t, "tcp", got.Service)
	assert.EqualValues(t, 1700000000, got.Timestamp)
	assert.Equal(t, DataVersion, got.DataVersion)
	assert.JSONEq(t, `{"response_str":"open"}`, string(got.Data))

	assert.Equal(t, map[string]string{
		"target": "127.0.0.1",
		"state":  "open",
		"rtt_ms": "3",
	}, msg.Attributes)
}

func TestPubSubSink_PublishesEachOpenPort(t *testing.T) {
	ctx := context.Background()
	srv, client := newTestClient(t)
	topic, err := client.CreateTopic(ctx, "scans")
	require.NoError(t, err)

	sink := NewPubSubSink(topic, nil)
	sink.now = func() time.Time { return time.Unix(42, 0) }

	target := netip.MustParseAddr("10.1.2.3")
	for _, p := range []uint16{443, 22} {
		require.NoError(t, sink.Open(ctx, port.Outcome{Target: target, Port: p, State: port.StateOpen}))
	}
	require.NoError(t, sink.Close(ctx))

	msgs := srv.Messages()
	require.Len(t, msgs, 2)

	var ports []int
	for _, m := range msgs {
		var sm ScanMessage
		require.NoError(t, json.Unmarshal(m.Data, &sm))
		assert.Equal(t, "10.1.2.3", sm.IP)
		assert.EqualValues(t, 42, sm.Timestamp)
		assert.Equal(t, "open", m.Attributes["state"])
		ports = append(ports, int(sm.Port))
	}
	sort.Ints(ports)
	assert.Equal(t, []int{22, 443}, ports)
}

func TestPubSubSink_CloseReportsFailures(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	logger, hook := logtest.NewNullLogger()

	sink := NewPubSubSink(client.Topic("missing"), logger)
	require.NoError(t, sink.Open(ctx, port.Outcome{
		Target: netip.MustParseAddr("127.0.0.1"),
		Port:   80,
		State:  port.StateOpen,
	}))

	err := sink.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish port 80")
	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, "publish failed", hook.LastEntry().Message)
}
