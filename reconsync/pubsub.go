package reconsync

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/creditrecon_backend/config"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

func topicName() string {
	name := strings.TrimSpace(os.Getenv("RECON_SYNC_TOPIC"))
	if name == "" {
		name = "recon-sync"
	}
	return name
}

func PublishReconRun(ctx context.Context, runId uint) error {
	topic := topicName()

	if envBoolDefault("RECON_SYNC_CREATE_TOPIC", false) {
		client, err := config.GetClient(ctx)
		if err != nil {
			return err
		}
		if _, err := config.CreateTopicIfNotExists(client, topic); err != nil {
			return err
		}
	}

	_, err := config.PublishJSON(ctx, topic, ReconPubSubPayload{RunId: runId})
	return err
}

func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_RECON_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload ReconPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 {
			c.Status(204)
			return
		}

		_ = processReconRun(c.Request.Context(), payload)
		c.Status(204)
	}
}

// RunSubscriber pulls run messages directly, for environments where no
// push endpoint is reachable (local dev, private workers). Blocks until
// ctx is cancelled.
func RunSubscriber(ctx context.Context) error {
	subName := strings.TrimSpace(os.Getenv("RECON_SYNC_SUBSCRIPTION"))
	if subName == "" {
		subName = "recon-sync-worker"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	topic, err := config.CreateTopicIfNotExists(client, topicName())
	if err != nil {
		return err
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, subName, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		var payload ReconPubSubPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.RunId == 0 {
			msg.Ack()
			return
		}
		if err := processReconRun(msgCtx, payload); err != nil {
			config.LogError(config.GetLogger(), "reconsync", "RunSubscriber", "process run", payload.RunId, err)
		}
		// Worker failures are recorded on the run itself; redelivery
		// would only repeat the same failure.
		msg.Ack()
	})
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
