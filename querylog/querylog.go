// Package querylog publishes the statements executed on ArangoDB as events, and
// subscribes to them, so tools like a debug panel can list the queries of a request.
package querylog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/birdie-ai/arangoql/aql"
	"github.com/birdie-ai/arangoql/slog"
	"github.com/birdie-ai/arangoql/tracing"
	"gocloud.dev/pubsub"
)

type (
	// Entry describes an executed statement.
	Entry struct {
		TraceID    string        `json:"trace_id"`
		Kind       aql.Kind      `json:"kind"`
		Collection string        `json:"collection"`
		Query      string        `json:"query"`
		BindVars   aql.Params    `json:"bind_vars,omitempty"`
		Elapsed    time.Duration `json:"elapsed"`
		// Rows is the number of rows returned, or of documents written by mutations.
		Rows  int64     `json:"rows"`
		Error string    `json:"error,omitempty"`
		Time  time.Time `json:"time"`
	}

	// Publisher publishes entries on a topic.
	Publisher struct {
		topic *pubsub.Topic
	}

	// Handler handles an entry received by a [Subscription]. The context has the
	// trace ID of the entry.
	Handler func(ctx context.Context, e Entry) error

	// Subscription delivers the entries published on a topic.
	Subscription struct {
		sub            *pubsub.Subscription
		maxConcurrency int
	}
)

// NewEntry creates an entry for the given statement.
func NewEntry(st aql.Statement) Entry {
	return Entry{
		Kind:       st.Kind,
		Collection: st.Collection,
		Query:      st.Query,
		BindVars:   st.BindVars,
	}
}

// Raw returns the query with the bind parameters replaced by their values.
// It is meant for humans, the result may not be valid AQL.
func (e Entry) Raw() string {
	return aql.Statement{Query: e.Query, BindVars: e.BindVars}.Interpolate()
}

// NewPublisher creates a publisher for the given topic.
func NewPublisher(t *pubsub.Topic) *Publisher {
	return &Publisher{topic: t}
}

// OpenPublisher opens the topic with the given URL, like "gcppubsub://projects/p/topics/t",
// and creates a publisher for it. The driver of the URL scheme must be imported.
func OpenPublisher(ctx context.Context, url string) (*Publisher, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("querylog: opening topic %q: %w", url, err)
	}
	return NewPublisher(topic), nil
}

// Publish publishes the entry. Missing trace ID and time are taken from the context
// and from the clock.
func (p *Publisher) Publish(ctx context.Context, e Entry) error {
	if e.TraceID == "" {
		e.TraceID, _ = tracing.CtxGetTraceID(ctx)
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	start := time.Now()
	body, err := json.Marshal(e)
	if err == nil {
		err = p.topic.Send(ctx, &pubsub.Message{Body: body})
	}
	samplePublish(e.Kind, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("querylog: publishing entry: %w", err)
	}
	return nil
}

// Shutdown flushes pending entries and closes the topic.
func (p *Publisher) Shutdown(ctx context.Context) error {
	return p.topic.Shutdown(ctx)
}

// NewSubscription opens the subscription with the given URL. [Subscription.Serve] handles
// up to maxConcurrency entries at a time.
func NewSubscription(ctx context.Context, url string, maxConcurrency int) (*Subscription, error) {
	if maxConcurrency <= 0 {
		return nil, fmt.Errorf("querylog: max concurrency must be > 0: %d", maxConcurrency)
	}
	sub, err := pubsub.OpenSubscription(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("querylog: opening subscription %q: %w", url, err)
	}
	return &Subscription{sub: sub, maxConcurrency: maxConcurrency}, nil
}

// Serve calls handler for each entry received until [Subscription.Shutdown] is called.
// Entries are acknowledged when the handler succeeds. Messages that are not entries are
// logged and acknowledged, since no handler will ever succeed with them.
func (s *Subscription) Serve(handler Handler) error {
	semaphore := make(chan struct{}, s.maxConcurrency)
	for {
		semaphore <- struct{}{}
		msg, err := s.sub.Receive(context.Background())
		if err != nil {
			// Receive errors mean it will not succeed anymore.
			return fmt.Errorf("querylog: receiving from subscription, stopping serving: %w", err)
		}
		go func() {
			defer func() {
				<-semaphore
			}()

			var e Entry
			if err := json.Unmarshal(msg.Body, &e); err != nil {
				slog.Error("querylog: discarding invalid message", "error", err, "body", string(msg.Body))
				msg.Ack()
				return
			}
			ctx := tracing.CtxWithTraceID(context.Background(), e.TraceID)
			start := time.Now()
			err := handler(ctx, e)
			sampleProcess(e.Kind, time.Since(start), err)
			if err != nil {
				slog.FromCtx(ctx).Warn("querylog: handling entry", "error", err)
				msg.Nack()
				return
			}
			msg.Ack()
		}()
	}
}

// Shutdown stops the subscription, ending any calls to [Subscription.Serve].
func (s *Subscription) Shutdown(ctx context.Context) error {
	return s.sub.Shutdown(ctx)
}
