package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clearhealth/clearhealth-ai/internal/gateway"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

// ErrSynthesisInFlight indicates playback was requested while the first
// synthesis is still running.
var ErrSynthesisInFlight = errors.New("report: speech synthesis already in flight")

// AudioPlayer owns on-demand audio playback for one analysis result.
// The first successful synthesis is cached for the lifetime of the
// result so repeated play/stop cycles never re-invoke the gateway.
type AudioPlayer struct {
	mu           sync.Mutex
	synth        gateway.Synthesizer
	text         string
	timeout      time.Duration
	logger       *logging.Logger
	buf          []byte
	playing      bool
	synthesizing bool
}

// speakableText is the fixed summary sentence read aloud.
func speakableText(result *gateway.AnalysisResult) string {
	return fmt.Sprintf("Analysis for %s. %s. Severity level is %s.", result.Title, result.Summary, result.Severity)
}

func newAudioPlayer(synth gateway.Synthesizer, result *gateway.AnalysisResult, timeout time.Duration, logger *logging.Logger) *AudioPlayer {
	return &AudioPlayer{
		synth:   synth,
		text:    speakableText(result),
		timeout: timeout,
		logger:  logger,
	}
}

// Play returns the audio for the result summary, synthesizing it on
// first use, and marks the player as playing. The bool reports whether
// the audio came from cache. A synthesis failure leaves the player
// stopped; the caller surfaces the error as a notice without touching
// session phase.
func (p *AudioPlayer) Play(ctx context.Context) ([]byte, bool, error) {
	p.mu.Lock()
	if p.buf != nil {
		p.playing = true
		buf := p.buf
		p.mu.Unlock()
		return buf, true, nil
	}
	if p.synthesizing {
		p.mu.Unlock()
		return nil, false, ErrSynthesisInFlight
	}
	p.synthesizing = true
	text := p.text
	p.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	audio, err := p.synth.SynthesizeSpeech(callCtx, text)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesizing = false
	if err != nil {
		p.playing = false
		p.logger.Warn("speech synthesis failed", "error", err)
		return nil, false, err
	}
	p.buf = audio
	p.playing = true
	return audio, false, nil
}

// Stop tears down the active playback but retains the cached audio.
func (p *AudioPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

// Playing reports whether playback is active.
func (p *AudioPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Cached reports whether a synthesized buffer is retained.
func (p *AudioPlayer) Cached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf != nil
}
