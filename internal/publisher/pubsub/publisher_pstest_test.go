package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	gcppublisher "github.com/JakeFAU/job-aggregator/internal/publisher/pubsub"
)

func TestPublishDeliversJSONWithAttributes(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{
		Name: "projects/project-id/topics/search-summaries",
	})
	require.NoError(t, err)

	publisher := gcppublisher.New(client.Publisher("search-summaries"), map[string]string{"service": "job-aggregator"})
	id, err := publisher.Publish(ctx, "search.completed", map[string]any{"searchId": "abc", "count": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, publisher.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, id, msgs[0].ID)
	require.Equal(t, "search.completed", msgs[0].Attributes["event"])
	require.Equal(t, "job-aggregator", msgs[0].Attributes["service"])
	require.Equal(t, "application/json", msgs[0].Attributes["content-type"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	require.Equal(t, "abc", body["searchId"])
	require.InDelta(t, 3, body["count"], 0)
}
