package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"orsi/internal/settings"
)

// Fields that take free text while the settings menu is open.
const (
	awaitWeatherKey = "weather_key"
	awaitNewsKey    = "news_key"
	awaitCustomAPIs = "custom_apis"
)

// settingsDraft is the unsaved copy edited through the settings menu.
type settingsDraft struct {
	Settings settings.Settings `json:"settings"`
	Awaiting string            `json:"awaiting,omitempty"`
}

type wizardStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func newWizardStore(rdb *redis.Client, ttl time.Duration) *wizardStore {
	return &wizardStore{redis: rdb, ttl: ttl}
}

func (w *wizardStore) key(chatID int64) string {
	return fmt.Sprintf("orsi:draft:%d", chatID)
}

func (w *wizardStore) Set(ctx context.Context, chatID int64, draft settingsDraft) error {
	b, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return w.redis.Set(ctx, w.key(chatID), string(b), w.ttl).Err()
}

func (w *wizardStore) Get(ctx context.Context, chatID int64) (*settingsDraft, error) {
	raw, err := w.redis.Get(ctx, w.key(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var draft settingsDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (w *wizardStore) Clear(ctx context.Context, chatID int64) error {
	return w.redis.Del(ctx, w.key(chatID)).Err()
}
