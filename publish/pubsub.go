package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"

	"ipsniffer/port"
)

const flushTimeout = 10 * time.Second

// PubSubSink publishes one message per open port to a Pub/Sub topic.
// Publishing is asynchronous; Close waits for the outstanding results.
type PubSubSink struct {
	topic *pubsub.Topic
	log   logrus.FieldLogger
	now   func() time.Time

	mu      sync.Mutex
	pending []pending
}

type pending struct {
	port uint16
	res  *pubsub.PublishResult
}

// NewPubSubSink constructs a sink for the given topic.
func NewPubSubSink(topic *pubsub.Topic, log logrus.FieldLogger) *PubSubSink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PubSubSink{topic: topic, log: log, now: time.Now}
}

// Open implements scanner.Sink.
func (s *PubSubSink) Open(ctx context.Context, o port.Outcome) error {
	msg, err := NewMessage(o, s.now())
	if err != nil {
		return err
	}
	res := s.topic.Publish(ctx, msg)

	s.mu.Lock()
	s.pending = append(s.pending, pending{port: o.Port, res: res})
	s.mu.Unlock()
	return nil
}

// Close blocks until every message has been acknowledged by the server or has
// failed, then stops the topic. It returns the publish errors joined together.
func (s *PubSubSink) Close(ctx context.Context) error {
	defer s.topic.Stop()

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	s.mu.Lock()
	outstanding := s.pending
	s.pending = nil
	s.mu.Unlock()

	var errs []error
	for _, p := range outstanding {
		id, err := p.res.Get(ctx)
		if err != nil {
			s.log.WithError(err).WithField("port", p.port).Error("publish failed")
			errs = append(errs, fmt.Errorf("publish port %d: %w", p.port, err))
			continue
		}
		s.log.WithFields(logrus.Fields{"port": p.port, "msg_id": id}).Debug("published open port")
	}
	return errors.Join(errs...)
}
