package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tsuzi/internal/logging"
)

// ErrEmptyTranscript is returned when a capture window ends without speech.
var ErrEmptyTranscript = errors.New("empty transcript")

// TranscriberConfig configures the websocket ASR client.
type TranscriberConfig struct {
	// Endpoint is the sidecar's websocket URL.
	Endpoint string
	// Timeout bounds one capture window (silence detection happens sidecar
	// side; this is the hard ceiling).
	Timeout time.Duration
}

// DefaultTranscriberConfig returns defaults for a local ASR sidecar.
func DefaultTranscriberConfig() TranscriberConfig {
	return TranscriberConfig{
		Endpoint: "ws://127.0.0.1:8765/asr",
		Timeout:  30 * time.Second,
	}
}

// asrMessage is the sidecar wire format. The sidecar owns microphone
// capture and voice-activity detection; the client only asks for the next
// utterance and waits for the final transcript.
type asrMessage struct {
	Type  string `json:"type"` // "listen" | "transcript"
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`
}

// Transcriber captures one utterance at a time from the ASR sidecar.
type Transcriber struct {
	cfg TranscriberConfig
	log zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewTranscriber creates a client. The connection is dialed lazily on the
// first Transcribe so a missing sidecar fails the capture, not startup.
func NewTranscriber(cfg TranscriberConfig) *Transcriber {
	if cfg.Endpoint == "" {
		cfg = DefaultTranscriberConfig()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Transcriber{cfg: cfg, log: logging.Component("transcriber")}
}

func (t *Transcriber) connect(ctx context.Context) (*websocket.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.cfg.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial asr sidecar: %w", err)
	}
	t.conn = conn
	t.log.Debug().Str("endpoint", t.cfg.Endpoint).Msg("asr sidecar connected")
	return conn, nil
}

// Transcribe blocks until the sidecar reports an end-of-utterance transcript
// or the capture window times out. Silence yields ErrEmptyTranscript.
func (t *Transcriber) Transcribe(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	conn, err := t.connect(ctx)
	if err != nil {
		return "", err
	}

	deadline, _ := ctx.Deadline()
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(asrMessage{Type: "listen"}); err != nil {
		t.dropConn()
		return "", fmt.Errorf("request capture: %w", err)
	}

	conn.SetReadDeadline(deadline)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.dropConn()
			return "", fmt.Errorf("read transcript: %w", err)
		}
		var msg asrMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "transcript" || !msg.Final {
			continue
		}
		if msg.Text == "" {
			return "", ErrEmptyTranscript
		}
		return msg.Text, nil
	}
}

func (t *Transcriber) dropConn() {
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

// Close tears down the sidecar connection.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropConn()
	return nil
}
