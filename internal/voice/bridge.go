// Package voice connects a session to speech capture and synthesis
// capabilities supplied by the surface hosting it.
package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"orsi/internal/conversation"
)

var (
	ErrUnsupported = errors.New("speech recognition unsupported")
	ErrListening   = errors.New("capture already in progress")
)

// Utterance mirrors the platform speech parameters. Volume is 0..1.
type Utterance struct {
	Text   string  `json:"text"`
	Locale string  `json:"lang"`
	Volume float64 `json:"volume"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
}

// Recognizer performs one non-continuous capture and returns its transcript.
type Recognizer interface {
	Capture(ctx context.Context, locale string) (string, error)
}

type Synthesizer interface {
	Speak(ctx context.Context, u Utterance) error
}

type Config struct {
	Recognizer     Recognizer
	Synthesizer    Synthesizer
	Locale         string
	CaptureTimeout time.Duration
	Logger         zerolog.Logger
}

type Bridge struct {
	rec     Recognizer
	synth   Synthesizer
	locale  string
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup
}

func NewBridge(cfg Config) *Bridge {
	if cfg.Locale == "" {
		cfg.Locale = "pt-BR"
	}
	return &Bridge{
		rec:     cfg.Recognizer,
		synth:   cfg.Synthesizer,
		locale:  cfg.Locale,
		timeout: cfg.CaptureTimeout,
		logger:  cfg.Logger.With().Str("component", "voice").Logger(),
	}
}

func (b *Bridge) CanCapture() bool { return b.rec != nil }

func (b *Bridge) Listening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

// StartCapture begins a one-shot capture in the background. A non-empty
// transcript is passed to onTranscript; the listening state resets on
// result, error or stop.
func (b *Bridge) StartCapture(ctx context.Context, onTranscript func(string)) error {
	if b.rec == nil {
		return ErrUnsupported
	}

	b.mu.Lock()
	if b.cancel != nil {
		b.mu.Unlock()
		return ErrListening
	}
	base := context.WithoutCancel(ctx)
	var cancel context.CancelFunc
	if b.timeout > 0 {
		ctx, cancel = context.WithTimeout(base, b.timeout)
	} else {
		ctx, cancel = context.WithCancel(base)
	}
	b.gen++
	gen := b.gen
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		text, err := b.rec.Capture(ctx, b.locale)
		b.finish(gen)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				b.logger.Warn().Err(err).Msg("speech capture failed")
			}
			return
		}
		if text != "" && onTranscript != nil {
			onTranscript(text)
		}
	}()
	return nil
}

// StopCapture ends the active capture, if any.
func (b *Bridge) StopCapture() {
	b.mu.Lock()
	gen := b.gen
	b.mu.Unlock()
	b.finish(gen)
}

// finish clears the listening state if it still belongs to capture gen.
func (b *Bridge) finish(gen uint64) {
	b.mu.Lock()
	if b.gen != gen || b.cancel == nil {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	cancel()
}

// Speak reads text aloud without waiting. It does nothing when voice
// responses are off or no synthesizer is attached, and reports whether
// an utterance was started. Earlier utterances are not cancelled.
func (b *Bridge) Speak(text string, enabled bool, volume int) bool {
	if !enabled || b.synth == nil {
		return false
	}
	plain := conversation.PlainText(text, false)
	if plain == "" {
		return false
	}
	u := Utterance{
		Text:   plain,
		Locale: b.locale,
		Volume: float64(volume) / 100,
		Rate:   1,
		Pitch:  1,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.synth.Speak(context.Background(), u); err != nil {
			b.logger.Warn().Err(err).Msg("speech synthesis failed")
		}
	}()
	return true
}

// Wait blocks until background captures and utterances have returned.
func (b *Bridge) Wait() {
	b.wg.Wait()
}
