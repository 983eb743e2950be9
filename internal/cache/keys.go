package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// NotifyBroadcastChannel receives every event for clients without an
// identified owner.
const NotifyBroadcastChannel = "notify:broadcast"

// NotifyChannelPattern matches every notification channel.
const NotifyChannelPattern = "notify:*"

func InsightKey(namespace, hash string) string {
	return fmt.Sprintf("insight:%s:%s", namespace, hash)
}

func TaskResultKey(taskID uuid.UUID) string {
	return fmt.Sprintf("task:%s:result", taskID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func NotifyOwnerChannel(ownerID uuid.UUID) string {
	return fmt.Sprintf("notify:owner:%s", ownerID)
}
