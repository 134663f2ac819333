package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/gemini-voice/internal/audio"
	"github.com/lexiqai/gemini-voice/internal/config"
	"github.com/lexiqai/gemini-voice/internal/observability"
	"github.com/lexiqai/gemini-voice/internal/tts"
)

const maxLoggedPayload = 512

// Options configures a single live session
type Options struct {
	Model      string
	Voice      string
	OutputPath string
	Normalize  bool
	SampleRate int // used when the chunk mime type carries no rate
	QueueSize  int // capacity of the event channel
}

// OptionsFromConfig builds Options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:      cfg.LiveModel,
		Voice:      cfg.Voice,
		OutputPath: cfg.OutputFile,
		Normalize:  cfg.Normalize,
		SampleRate: cfg.SampleRate,
		QueueSize:  cfg.LiveEventQueueSize,
	}
}

// Result describes a completed turn
type Result struct {
	OutputPath  string
	Written     bool // false when the turn completed without audio
	Chunks      int
	DataBytes   int
	SampleRate  int
	Stats       audio.Stats
	Transitions []StateChange
}

type eventKind int

const (
	eventOpen eventKind = iota
	eventMessage
	eventClosed
)

type event struct {
	kind eventKind
	data []byte
	err  error
}

// Session runs one text turn over a BidiGenerateContent socket.
// A reader goroutine feeds a bounded event channel and Run dispatches
// events one at a time, so handling order equals arrival order.
type Session struct {
	dialer  Dialer
	opts    Options
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu          sync.RWMutex
	state       State
	transitions []StateChange

	// Owned by the dispatcher
	conn       Conn
	text       string
	chunks     *audio.ChunkList
	sampleRate int
	result     *Result
}

// NewSession creates a session in the CONNECTING state
func NewSession(dialer Dialer, opts Options, logger zerolog.Logger, metrics *observability.Metrics) *Session {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.DefaultFormat.SampleRate
	}

	return &Session{
		dialer:     dialer,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
		state:      StateConnecting,
		chunks:     audio.NewChunkList(),
		sampleRate: opts.SampleRate,
	}
}

// State returns the current state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transitions returns every transition taken so far
func (s *Session) Transitions() []StateChange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StateChange, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// Run connects, sends text as one user turn and writes the audio reply to
// the configured output path once the server signals turn complete.
func (s *Session) Run(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	s.text = text

	s.metrics.RecordRequestStart()
	result, err := s.run(ctx)
	s.metrics.RecordRequestEnd(err == nil)

	return result, err
}

func (s *Session) run(ctx context.Context) (*Result, error) {
	s.metrics.SetLiveState(int(StateConnecting))
	s.logger.Info().Str("model", s.opts.Model).Str("voice", s.opts.Voice).Msg("Connecting to live endpoint")

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.metrics.RecordError("transport", "live")
		s.fail()
		return nil, err
	}
	s.conn = conn

	events := make(chan event, s.opts.QueueSize)
	done := make(chan struct{})
	defer close(done)

	// The open event is queued before the reader starts so it is always handled first
	events <- event{kind: eventOpen}
	go s.readLoop(conn, events, done)

	for {
		select {
		case <-ctx.Done():
			s.logger.Warn().Str("state", s.State().String()).Msg("Live session canceled")
			s.abort(ctx.Err())
			return nil, ctx.Err()

		case ev := <-events:
			finished, err := s.handle(ev)
			if err != nil {
				s.abort(err)
				return nil, err
			}
			if finished {
				return s.result, nil
			}
		}
	}
}

// readLoop forwards every inbound frame, then the terminal read error, to events
func (s *Session) readLoop(conn Conn, events chan<- event, done <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()

		ev := event{kind: eventMessage, data: data}
		if err != nil {
			ev = event{kind: eventClosed, err: err}
		}

		select {
		case events <- ev:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) handle(ev event) (bool, error) {
	switch ev.kind {
	case eventOpen:
		return false, s.onOpen()
	case eventMessage:
		return s.onMessage(ev.data)
	case eventClosed:
		return false, s.onClosed(ev.err)
	default:
		return false, fmt.Errorf("unknown event kind %d", ev.kind)
	}
}

func (s *Session) onOpen() error {
	if err := s.conn.WriteJSON(newSetupMessage(s.opts.Model, s.opts.Voice)); err != nil {
		return fmt.Errorf("failed to send setup: %w", err)
	}
	return s.transition(StateSetupSent)
}

func (s *Session) onMessage(data []byte) (bool, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Error().Err(err).Str("payload", truncate(data)).Msg("Malformed server message")
		return false, fmt.Errorf("malformed server message: %w", err)
	}

	if present(msg.SetupComplete) {
		if err := s.onSetupComplete(); err != nil {
			return false, err
		}
	}

	if sc := msg.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			if err := s.onModelTurn(sc.ModelTurn); err != nil {
				return false, err
			}
		}
		if sc.Interrupted {
			s.logger.Warn().Msg("Server reported the turn as interrupted")
		}
		if sc.TurnComplete {
			return s.onTurnComplete()
		}
	}

	if present(msg.GoAway) {
		s.logger.Warn().RawJSON("go_away", msg.GoAway).Msg("Server is going away")
	}

	return false, nil
}

func (s *Session) onSetupComplete() error {
	if state := s.State(); state != StateSetupSent {
		s.logger.Warn().Str("state", state.String()).Msg("Ignoring setupComplete outside SETUP_SENT")
		return nil
	}

	s.chunks.Reset()
	if err := s.conn.WriteJSON(newTextTurn(s.text)); err != nil {
		return fmt.Errorf("failed to send text turn: %w", err)
	}
	return s.transition(StateAwaitingAudio)
}

func (s *Session) onModelTurn(mt *modelTurn) error {
	if state := s.State(); state != StateAwaitingAudio {
		s.logger.Warn().Str("state", state.String()).Msg("Ignoring model turn outside AWAITING_AUDIO")
		return nil
	}

	for _, p := range mt.Parts {
		if p.InlineData == nil {
			if p.Text != "" {
				s.logger.Debug().Str("text", p.Text).Msg("Model text part")
			}
			continue
		}
		if !strings.HasPrefix(p.InlineData.MimeType, "audio/pcm") {
			s.logger.Debug().Str("mime_type", p.InlineData.MimeType).Msg("Skipping non-PCM inline data")
			continue
		}

		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return fmt.Errorf("failed to decode audio chunk: %w", err)
		}

		if s.chunks.IsEmpty() {
			s.sampleRate = tts.ParseSampleRate(p.InlineData.MimeType, s.opts.SampleRate)
		}
		s.chunks.Append(data)
		s.metrics.RecordAudioChunk()
		s.metrics.RecordAudioBytes("received", len(data))

		s.logger.Debug().
			Int("bytes", len(data)).
			Int("chunks", s.chunks.Len()).
			Msg("Received audio chunk")
	}
	return nil
}

func (s *Session) onTurnComplete() (bool, error) {
	if state := s.State(); state != StateAwaitingAudio {
		s.logger.Warn().Str("state", state.String()).Msg("Ignoring turnComplete outside AWAITING_AUDIO")
		return false, nil
	}
	if err := s.transition(StateTurnComplete); err != nil {
		return false, err
	}

	result := &Result{
		OutputPath: s.opts.OutputPath,
		Chunks:     s.chunks.Len(),
		SampleRate: s.sampleRate,
	}

	if s.chunks.IsEmpty() {
		s.logger.Warn().Msg("No audio chunks received, file not saved.")
	} else {
		format := audio.Format{SampleRate: s.sampleRate, Channels: 1, BitsPerSample: 16}
		written, err := audio.WriteWAVFile(s.opts.OutputPath, s.chunks.Concat(), audio.WriteOptions{
			Format:    format,
			Normalize: s.opts.Normalize,
		})
		if err != nil {
			return false, err
		}

		result.Written = true
		result.DataBytes = written.DataBytes
		result.Stats = written.Stats
		s.metrics.RecordAudioBytes("written", written.DataBytes)

		s.logger.Info().
			Str("path", written.Path).
			Int("chunks", result.Chunks).
			Int("bytes", written.FileBytes).
			Interface("stats", written.Stats).
			Msg("Saved live audio")
	}

	if err := closeNormally(s.conn); err != nil {
		s.logger.Debug().Err(err).Msg("Error during normal close")
	} else {
		s.metrics.RecordCloseCode(websocket.CloseNormalClosure)
	}
	if err := s.transition(StateClosed); err != nil {
		return false, err
	}

	result.Transitions = s.Transitions()
	s.result = result
	return true, nil
}

// onClosed handles a read failure before the turn completed
func (s *Session) onClosed(err error) error {
	state := s.State()

	var wsErr *websocket.CloseError
	if errors.As(err, &wsErr) {
		s.metrics.RecordCloseCode(wsErr.Code)
		s.logger.Error().
			Int("code", wsErr.Code).
			Str("reason", wsErr.Text).
			Str("diagnostic", CloseCodeMessage(wsErr.Code)).
			Str("state", state.String()).
			Msg("Live socket closed before turn complete")
		return &CloseError{Code: wsErr.Code, Reason: wsErr.Text, State: state}
	}

	s.logger.Error().Err(err).Str("state", state.String()).Msg("Live socket read failed")
	return fmt.Errorf("live transport error in state %s: %w", state, err)
}

// abort closes the socket and moves through ERROR to CLOSED
func (s *Session) abort(err error) {
	var closeErr *CloseError
	switch {
	case errors.As(err, &closeErr):
		s.metrics.RecordError("close", "live")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.metrics.RecordError("canceled", "live")
	default:
		s.metrics.RecordError("protocol", "live")
	}

	if s.conn != nil {
		s.conn.Close()
	}
	s.fail()
}

func (s *Session) fail() {
	if err := s.transition(StateError); err != nil {
		s.logger.Debug().Err(err).Msg("Already failed")
	}
	if err := s.transition(StateClosed); err != nil {
		s.logger.Debug().Err(err).Msg("Already closed")
	}
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	from := s.state
	if !transitionValid(from, to) {
		s.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	s.state = to
	s.transitions = append(s.transitions, StateChange{From: from, To: to, Timestamp: time.Now()})
	s.mu.Unlock()

	s.metrics.SetLiveState(int(to))
	s.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Live state transition")
	return nil
}

// present reports whether an optional object field was sent
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func truncate(data []byte) string {
	if len(data) <= maxLoggedPayload {
		return string(data)
	}
	return string(data[:maxLoggedPayload]) + "..."
}
