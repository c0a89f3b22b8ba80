package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	//nolint:staticcheck // pstest only serves plaintext.
	conn, err := grpc.Dial(srv.Addr, grpc.WithInsecure())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "lore-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishSendsJSONWithTraceContext(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	_, err := client.CreateTopic(ctx, "lore-entities")
	require.NoError(t, err)

	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	spanCtx := trace.ContextWithSpanContext(ctx, sc)

	pub, err := New(client)
	require.NoError(t, err)
	defer pub.Close()

	id, err := pub.Publish(spanCtx, "lore-entities", map[string]any{"name": "JINX", "position": 1})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	require.Equal(t, "JINX", decoded["name"])
	require.Contains(t, msgs[0].Attributes, "traceparent")
}

func TestPublishUnknownTopicFails(t *testing.T) {
	client, _ := newTestClient(t)

	pub, err := New(client)
	require.NoError(t, err)
	defer pub.Close()

	_, err = pub.Publish(context.Background(), "missing", "x")
	require.Error(t, err)
}

func TestPublishValidates(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	client, _ := newTestClient(t)
	pub, err := New(client)
	require.NoError(t, err)

	_, err = pub.Publish(context.Background(), "", "x")
	require.Error(t, err)
	_, err = pub.Publish(context.Background(), "t", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}
