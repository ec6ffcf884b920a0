package workflow

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/mulyaapp/ledger_backend/config"
	"github.com/mulyaapp/ledger_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Change-notification channels. Clients subscribe to the channels they
// render and re-query on every message.
const (
	TopicBalancesChanged     = "balances_changed"
	TopicTransactionsChanged = "transactions_changed"
	TopicPlansChanged        = "plans_changed"
	TopicCategoriesChanged   = "categories_changed"
	TopicProfileChanged      = "profile_changed"
	TopicPreferencesChanged  = "preferences_changed"
	TopicStoreRestored       = "store_restored"
)

// Notifier publishes change events after a mutation commits. Publishing is
// best effort: a failed publish is logged and never fails the mutation.
// A nil *Notifier (or one with no redis client) is a valid no-op, which is
// what the CLI tools and tests use.
type Notifier struct {
	rdb    *redis.Client
	topic  *pubsub.Topic
	logger *logrus.Logger
}

func NewNotifier(rdb *redis.Client, logger *logrus.Logger) *Notifier {
	return &Notifier{rdb: rdb, logger: logger}
}

// WithPubSubTopic mirrors every event onto a Pub/Sub topic in addition to
// the redis channels.
func (n *Notifier) WithPubSubTopic(topic *pubsub.Topic) *Notifier {
	n.topic = topic
	return n
}

// Notify publishes one ChangeEvent per channel. Call it only after the
// enclosing database transaction has committed.
func (n *Notifier) Notify(ctx context.Context, channels ...string) {
	if n == nil || n.rdb == nil {
		return
	}
	correlationId := utils.CorrelationIdFromContextOrNew(ctx)
	for _, channel := range channels {
		event := config.ChangeEvent{
			Channel:       channel,
			ChangedAt:     time.Now(),
			CorrelationId: correlationId,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			config.LogError(n.logger, "workflow", "Notify", "marshal change event", event, err)
			continue
		}
		if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			config.LogError(n.logger, "workflow", "Notify", "publish to redis", channel, err)
		}
		if n.topic != nil {
			n.topic.Publish(ctx, &pubsub.Message{Data: payload})
		}
	}
}
