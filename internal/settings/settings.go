// Package settings loads and saves the per-partition assistant preferences.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StorageKey is the single key the whole settings object is persisted under.
const StorageKey = "orsi_config"

var ErrInvalid = errors.New("invalid settings")

type Settings struct {
	DarkMode      bool   `json:"darkMode"`
	Animations    bool   `json:"animations"`
	VoiceResponse bool   `json:"voiceResponse"`
	Volume        int    `json:"volume"`
	WeatherAPIKey string `json:"weatherApiKey"`
	NewsAPIKey    string `json:"newsApiKey"`
	// CustomAPIs is free text (YAML or JSON) describing extra adapters.
	CustomAPIs string `json:"customApis"`
}

func Defaults() Settings {
	return Settings{
		DarkMode:      true,
		Animations:    true,
		VoiceResponse: true,
		Volume:        80,
	}
}

func (s Settings) Validate() error {
	if s.Volume < 0 || s.Volume > 100 {
		return fmt.Errorf("%w: volume %d out of range 0-100", ErrInvalid, s.Volume)
	}
	return nil
}

// KV is the persistent key-value capability, scoped by partition.
type KV interface {
	Get(ctx context.Context, partition, key string) (value string, found bool, err error)
	Set(ctx context.Context, partition, key, value string) error
}

type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load merges the saved object over Defaults. The merge is shallow: each
// recognized top-level key replaces its default wholesale, and keys with an
// unusable value keep the default. On error the defaults are still returned.
func (s *Store) Load(ctx context.Context, partition string) (Settings, error) {
	out := Defaults()
	raw, found, err := s.kv.Get(ctx, partition, StorageKey)
	if err != nil {
		return out, fmt.Errorf("read settings: %w", err)
	}
	if !found || strings.TrimSpace(raw) == "" {
		return out, nil
	}

	decoded, err := Decode([]byte(raw))
	if err != nil {
		return out, err
	}
	return decoded, nil
}

// Decode applies a serialized object over Defaults with the same shallow
// merge Load uses.
func Decode(raw []byte) (Settings, error) {
	out := Defaults()
	var saved map[string]json.RawMessage
	if err := json.Unmarshal(raw, &saved); err != nil {
		return out, fmt.Errorf("decode settings: %w", err)
	}
	mergeBool(saved, "darkMode", &out.DarkMode)
	mergeBool(saved, "animations", &out.Animations)
	mergeBool(saved, "voiceResponse", &out.VoiceResponse)
	mergeVolume(saved, &out.Volume)
	mergeString(saved, "weatherApiKey", &out.WeatherAPIKey)
	mergeString(saved, "newsApiKey", &out.NewsAPIKey)
	mergeText(saved, "customApis", &out.CustomAPIs)
	return out, nil
}

// Save replaces any previously stored object for the partition.
func (s *Store) Save(ctx context.Context, partition string, v Settings) error {
	if err := v.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.kv.Set(ctx, partition, StorageKey, string(b)); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func mergeBool(saved map[string]json.RawMessage, key string, dst *bool) {
	raw, ok := saved[key]
	if !ok {
		return
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

func mergeString(saved map[string]json.RawMessage, key string, dst *string) {
	raw, ok := saved[key]
	if !ok {
		return
	}
	var v string
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = v
	}
}

// mergeVolume accepts the legacy string form ("80") written by older front-ends.
func mergeVolume(saved map[string]json.RawMessage, dst *int) {
	raw, ok := saved["volume"]
	if !ok {
		return
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return
		}
		n = parsed
	}
	if n < 0 || n > 100 {
		return
	}
	*dst = int(n)
}

// mergeText keeps strings as-is and stores legacy object values as compact JSON text.
func mergeText(saved map[string]json.RawMessage, key string, dst *string) {
	raw, ok := saved[key]
	if !ok {
		return
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*dst = s
		return
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return
	}
	if buf.String() == "{}" {
		*dst = ""
		return
	}
	*dst = buf.String()
}
