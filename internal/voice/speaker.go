// Package voice holds the speech collaborators: an HTTP text-to-speech
// client with queued playback and barge-in, and a websocket transcription
// client. Both talk to local sidecars; neither touches audio hardware
// directly.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tsuzi/internal/logging"
)

// SpeakerConfig configures the TTS client.
type SpeakerConfig struct {
	// Endpoint is the synthesis API (OpenAI-compatible audio/speech route).
	Endpoint string
	// Voice is the voice identifier.
	Voice string
	// Speed is the playback speed multiplier.
	Speed float64
	// Timeout bounds a single synthesis request.
	Timeout time.Duration
	// QueueSize caps pending speech chunks.
	QueueSize int
}

// DefaultSpeakerConfig returns defaults for a local Kokoro-style sidecar.
func DefaultSpeakerConfig() SpeakerConfig {
	return SpeakerConfig{
		Endpoint:  "http://127.0.0.1:8880/v1/audio/speech",
		Voice:     "af_heart",
		Speed:     1.0,
		Timeout:   30 * time.Second,
		QueueSize: 32,
	}
}

type speechJob struct {
	text string
	done chan error
}

// Speaker synthesizes text through an HTTP sidecar and plays it via a
// caller-supplied playback function. Chunks play strictly in enqueue order;
// Stop drops everything queued and interrupts the current chunk (barge-in).
type Speaker struct {
	cfg        SpeakerConfig
	httpClient *http.Client
	log        zerolog.Logger

	queue       chan *speechJob
	interrupted atomic.Bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	playbackMu sync.Mutex
	playbackFn func(audio []byte) error

	spoken      atomic.Int64
	synthErrors atomic.Int64
}

// NewSpeaker creates a speaker and starts its playback worker.
func NewSpeaker(cfg SpeakerConfig) *Speaker {
	if cfg.Endpoint == "" {
		cfg = DefaultSpeakerConfig()
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 32
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Speaker{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logging.Component("speaker"),
		queue:      make(chan *speechJob, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.wg.Add(1)
	go s.processQueue()
	return s
}

// SetPlaybackFunc installs the audio sink. Without one, synthesized audio is
// discarded (useful in text-only mode and tests).
func (s *Speaker) SetPlaybackFunc(fn func(audio []byte) error) {
	s.playbackMu.Lock()
	s.playbackFn = fn
	s.playbackMu.Unlock()
}

// Speak queues a chunk and waits for it to finish playing. An interrupt
// while queued or playing returns without error; the caller checks
// Interrupted to stop feeding further chunks.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if s.interrupted.Load() {
		return nil
	}

	job := &speechJob{text: text, done: make(chan error, 1)}
	select {
	case s.queue <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("speaker closed")
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return nil
	}
}

// Stop is the barge-in path: it drops queued chunks and marks the worker
// interrupted so the current chunk is abandoned. Reset re-arms the speaker
// for the next turn.
func (s *Speaker) Stop() {
	s.interrupted.Store(true)
	for {
		select {
		case job := <-s.queue:
			job.done <- nil
		default:
			return
		}
	}
}

// Reset clears the interrupted flag before a new turn.
func (s *Speaker) Reset() {
	s.interrupted.Store(false)
}

// Interrupted reports whether a barge-in occurred since the last Reset.
func (s *Speaker) Interrupted() bool {
	return s.interrupted.Load()
}

// Close shuts the worker down. Queued chunks are discarded.
func (s *Speaker) Close() error {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
	return nil
}

func (s *Speaker) processQueue() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.queue:
			if s.interrupted.Load() {
				job.done <- nil
				continue
			}
			err := s.speakNow(job.text)
			if err != nil {
				s.synthErrors.Add(1)
				s.log.Warn().Err(err).Msg("synthesis failed")
			} else {
				s.spoken.Add(1)
			}
			job.done <- err
		}
	}
}

func (s *Speaker) speakNow(text string) error {
	audio, err := s.synthesize(text)
	if err != nil {
		return err
	}
	if s.interrupted.Load() {
		return nil
	}

	s.playbackMu.Lock()
	fn := s.playbackFn
	s.playbackMu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(audio)
}

// playerCommand picks the platform audio player for a WAV file.
func playerCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "afplay", []string{path}
	case "windows":
		return "powershell", []string{"-NoProfile", "-Command",
			fmt.Sprintf("(New-Object Media.SoundPlayer '%s').PlaySync()", path)}
	default:
		return "aplay", []string{"-q", path}
	}
}

// SystemPlayback plays WAV bytes through the host audio player, blocking
// until playback finishes. Install it with SetPlaybackFunc for voice mode.
func SystemPlayback(audio []byte) error {
	f, err := os.CreateTemp("", "tsuzi-*.wav")
	if err != nil {
		return fmt.Errorf("stage audio: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("stage audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("stage audio: %w", err)
	}

	name, args := playerCommand(runtime.GOOS, path)
	if err := exec.Command(name, args...).Run(); err != nil {
		return fmt.Errorf("play audio with %s: %w", name, err)
	}
	return nil
}

func (s *Speaker) synthesize(text string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"input":           text,
		"voice":           s.cfg.Voice,
		"speed":           s.cfg.Speed,
		"response_format": "wav",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
