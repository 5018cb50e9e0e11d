package push

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vanderheijden86/beadsync/pkg/metrics"
	"github.com/vanderheijden86/beadsync/pkg/session"
)

// DefaultReconnectDelay is the pause before resubscribing after the
// subscription channel closes.
const DefaultReconnectDelay = time.Second

// Subscriber relays a redis channel into a session.
type Subscriber struct {
	client         redis.UniversalClient
	channel        string
	log            logrus.FieldLogger
	reconnectDelay time.Duration
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Subscriber) {
		if l != nil {
			s.log = l
		}
	}
}

// WithReconnectDelay sets the resubscribe pause.
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Subscriber) {
		if d > 0 {
			s.reconnectDelay = d
		}
	}
}

// NewSubscriber creates a subscriber for channel.
func NewSubscriber(client redis.UniversalClient, channel string, opts ...Option) *Subscriber {
	s := &Subscriber{
		client:         client,
		channel:        channel,
		log:            logrus.StandardLogger(),
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logrus.Fields{"component": "push", "channel": channel})
	return s
}

// Source adapts the subscriber for session.RunSources.
func (s *Subscriber) Source() session.Source {
	return s.Run
}

// Run subscribes and submits every decodable message to sess until ctx is
// done or the session closes. Undecodable payloads and unknown types are
// logged and skipped. A closed subscription is re-established.
func (s *Subscriber) Run(ctx context.Context, sess *session.Session) error {
	for {
		err := s.consume(ctx, sess)
		if ctx.Err() != nil || errors.Is(err, session.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		s.log.WithField("event", "resubscribe").Warn("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Subscriber) consume(ctx context.Context, sess *session.Session) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		s.log.WithFields(logrus.Fields{"event": "subscribe_failed", "error": err.Error()}).Warn("subscribe failed")
		return nil
	}
	s.log.WithField("event", "subscribed").Info("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			metrics.PushMessages.Inc()

			ev, err := Decode([]byte(msg.Payload))
			if err != nil {
				s.log.WithFields(logrus.Fields{"event": "message_skipped", "error": err.Error()}).Warn("unable to parse update")
				continue
			}
			if err := sess.Submit(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// Publish sends an envelope on channel. Local tools use it to announce edits.
func Publish(ctx context.Context, client redis.UniversalClient, channel string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel, data).Err()
}
