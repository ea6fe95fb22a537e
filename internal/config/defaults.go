package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

// DefaultConfig returns the built-in configuration tree.
func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"http": map[string]interface{}{
			"port": "8080",
		},
		"storage": map[string]interface{}{
			"backend":         BackendSQLite,
			"sqlite_path":     "chronoloom.db",
			"redis_url":       "redis://localhost:6379/0",
			"redis_pool_size": 10,
			"database_url":    "",
			"db_pool_size":    10,
			"reminders_key":   "reminders",
			"push_token_key":  "fcmToken",
			"shadow_key":      "scheduledNotifications",
		},
		"reconciler": map[string]interface{}{
			"lead_time":       "10m",
			"interval":        "1m",
			"concurrency":     8,
			"due_soon_window": "24h",
		},
		"scheduler": map[string]interface{}{
			"backend":      SchedulerLocal,
			"check_period": "1s",
			"max_pending":  0,
		},
		"kafka": map[string]interface{}{
			"brokers":       []string{},
			"trigger_topic": "reminder-triggers",
			"push_topic":    "push-messages",
			"partitions":    4,
			"group_id":      "reminder-reconcilers",
		},
		"auth": map[string]interface{}{
			"jwt_secret": "",
		},
		"log": map[string]interface{}{
			"level": "info",
		},
	}
}

// NewDefaultProvider wraps DefaultConfig for koanf.
func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
