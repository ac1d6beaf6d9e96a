package web

import (
	"encoding/json"

	"orsi/internal/conversation"
	"orsi/internal/settings"
	"orsi/internal/voice"
)

// Client to server frame types.
const (
	FrameMessage       = "message"
	FrameTranscript    = "transcript"
	FrameCaptureEnd    = "capture_end"
	FrameCaptureError  = "capture_error"
	FrameVoiceToggle   = "voice_toggle"
	FrameLocation      = "location"
	FrameLocationError = "location_error"
	FrameSettingsGet   = "settings_get"
	FrameSettingsSave  = "settings_save"
)

// Server to client frame types.
const (
	FrameEntry        = "entry"
	FrameSpeak        = "speak"
	FrameOpenURL      = "open_url"
	FrameLocate       = "locate"
	FrameCaptureStart = "capture_start"
	FrameCaptureStop  = "capture_stop"
	FrameSettings     = "settings"
	FrameSession      = "session"
)

type Inbound struct {
	Type      string          `json:"type"`
	Content   string          `json:"content,omitempty"`
	Error     string          `json:"error,omitempty"`
	Latitude  float64         `json:"latitude,omitempty"`
	Longitude float64         `json:"longitude,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
}

type bareFrame struct {
	Type string `json:"type"`
}

type entryFrame struct {
	Type  string             `json:"type"`
	Entry conversation.Entry `json:"entry"`
}

type speakFrame struct {
	Type string `json:"type"`
	voice.Utterance
}

type openURLFrame struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type captureStartFrame struct {
	Type string `json:"type"`
	Lang string `json:"lang"`
}

type settingsFrame struct {
	Type     string            `json:"type"`
	Settings settings.Settings `json:"settings"`
}

type sessionFrame struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}
