package live

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/gemini-voice/internal/audio"
	"github.com/lexiqai/gemini-voice/internal/observability"
	"github.com/lexiqai/gemini-voice/internal/tts"
)

// fakeConn replays scripted frames. Once the script is exhausted ReadMessage
// returns endErr, or blocks until Close when endErr is nil.
type fakeConn struct {
	frames   chan []byte
	endErr   error
	writeErr error

	mu       sync.Mutex
	written  [][]byte
	controls []control
	closed   chan struct{}
	once     sync.Once
}

type control struct {
	messageType int
	data        []byte
}

func newFakeConn(endErr error, frames ...[]byte) *fakeConn {
	c := &fakeConn{
		frames: make(chan []byte, len(frames)),
		endErr: endErr,
		closed: make(chan struct{}),
	}
	for _, f := range frames {
		c.frames <- f
	}
	close(c.frames)
	return c
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, control{messageType: messageType, data: data})
	return c.writeErr
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f, ok := <-c.frames:
		if ok {
			return websocket.TextMessage, f, nil
		}
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}

	if c.endErr != nil {
		return 0, nil, c.endErr
	}
	<-c.closed
	return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) controlFrames() []control {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]control(nil), c.controls...)
}

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

var setupCompleteFrame = []byte(`{"setupComplete":{}}`)

var turnCompleteFrame = []byte(`{"serverContent":{"turnComplete":true}}`)

func audioFrame(t *testing.T, mimeType string, chunks ...[]byte) []byte {
	t.Helper()
	parts := make([]serverPart, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, serverPart{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(c),
		}})
	}
	data, err := json.Marshal(serverMessage{ServerContent: &serverContent{ModelTurn: &modelTurn{Parts: parts}}})
	require.NoError(t, err)
	return data
}

func newTestSession(t *testing.T, dialer Dialer, normalize bool) (*Session, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "live.wav")
	opts := Options{
		Model:      "gemini-live-test",
		Voice:      "Puck",
		OutputPath: out,
		Normalize:  normalize,
		SampleRate: 24000,
		QueueSize:  4,
	}
	return NewSession(dialer, opts, zerolog.Nop(), observability.NewInvocationMetrics("live")), out
}

func readPayload(t *testing.T, path string) ([]byte, audio.Format) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	payload, format, err := audio.DecodeWAV(data)
	require.NoError(t, err)
	return payload, format
}

func TestSession_ConcatenatesChunksInOrder(t *testing.T) {
	c1 := []byte{1, 0, 2, 0}
	c2 := []byte{3, 0, 4, 0, 5, 0, 6, 0, 7, 0, 8, 0}
	c3 := []byte{9, 0}

	conn := newFakeConn(nil,
		setupCompleteFrame,
		audioFrame(t, "audio/pcm;rate=24000", c1),
		audioFrame(t, "audio/pcm;rate=24000", c2, c3),
		turnCompleteFrame,
	)
	session, out := newTestSession(t, &fakeDialer{conn: conn}, false)

	result, err := session.Run(context.Background(), "Hello world")
	require.NoError(t, err)

	assert.True(t, result.Written)
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, len(c1)+len(c2)+len(c3), result.DataBytes)
	assert.Equal(t, StateClosed, session.State())

	payload, format := readPayload(t, out)
	expected := append(append(append([]byte{}, c1...), c2...), c3...)
	assert.Equal(t, expected, payload)
	assert.Equal(t, audio.DefaultFormat, format)

	var states []State
	for _, change := range result.Transitions {
		states = append(states, change.To)
	}
	assert.Equal(t, []State{StateSetupSent, StateAwaitingAudio, StateTurnComplete, StateClosed}, states)
}

func TestSession_RecordsNormalClose(t *testing.T) {
	conn := newFakeConn(nil, setupCompleteFrame, audioFrame(t, "audio/pcm;rate=24000", []byte{1, 0}), turnCompleteFrame)
	session, _ := newTestSession(t, &fakeDialer{conn: conn}, false)

	_, err := session.Run(context.Background(), "Hello world")
	require.NoError(t, err)

	assert.Equal(t, []int{websocket.CloseNormalClosure}, session.metrics.CloseCodes())
}

func TestSession_FailedCloseFrameIsNotCounted(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	conn := newFakeConn(nil, setupCompleteFrame, audioFrame(t, "audio/pcm;rate=24000", pcm), turnCompleteFrame)
	conn.writeErr = errors.New("broken pipe")
	session, out := newTestSession(t, &fakeDialer{conn: conn}, false)

	result, err := session.Run(context.Background(), "Hello world")
	require.NoError(t, err)
	assert.True(t, result.Written)
	assert.Equal(t, StateClosed, session.State())

	payload, _ := readPayload(t, out)
	assert.Equal(t, pcm, payload)
	assert.Empty(t, session.metrics.CloseCodes())
}

func TestSession_SendsSetupThenTextTurn(t *testing.T) {
	conn := newFakeConn(nil, setupCompleteFrame, turnCompleteFrame)
	session, _ := newTestSession(t, &fakeDialer{conn: conn}, false)

	_, err := session.Run(context.Background(), "Hello world")
	require.NoError(t, err)

	writes := conn.writes()
	require.Len(t, writes, 2)

	var setupMsg map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(writes[0], &setupMsg))
	assert.Equal(t, "models/gemini-live-test", setupMsg["setup"]["model"])
	assert.JSONEq(t,
		`{"response_modalities":["AUDIO"],"speech_config":{"voice_config":{"prebuilt_voice_config":{"voice_name":"Puck"}}}}`,
		mustMarshal(t, setupMsg["setup"]["generation_config"]))

	assert.JSONEq(t,
		`{"client_content":{"turns":[{"role":"user","parts":[{"text":"Hello world"}]}],"turn_complete":true}}`,
		string(writes[1]))

	controls := conn.controlFrames()
	require.Len(t, controls, 1)
	assert.Equal(t, websocket.CloseMessage, controls[0].messageType)
	assert.Equal(t, uint16(websocket.CloseNormalClosure), binary.BigEndian.Uint16(controls[0].data[:2]))
}

func TestSession_EmptyTurnWritesNothing(t *testing.T) {
	conn := newFakeConn(nil, setupCompleteFrame, turnCompleteFrame)
	session, out := newTestSession(t, &fakeDialer{conn: conn}, true)

	result, err := session.Run(context.Background(), "Hello")
	require.NoError(t, err)

	assert.False(t, result.Written)
	assert.Equal(t, 0, result.Chunks)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no file should be written for an empty turn")
}

func TestSession_TurnCompleteInSameMessageAsAudio(t *testing.T) {
	chunk := []byte{10, 0, 20, 0}
	frame := []byte(`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"` +
		base64.StdEncoding.EncodeToString(chunk) + `"}}]},"turnComplete":true}}`)

	conn := newFakeConn(nil, setupCompleteFrame, frame)
	session, out := newTestSession(t, &fakeDialer{conn: conn}, false)

	result, err := session.Run(context.Background(), "Hello")
	require.NoError(t, err)
	assert.True(t, result.Written)

	payload, _ := readPayload(t, out)
	assert.Equal(t, chunk, payload)
}

func TestSession_IgnoresAudioBeforeSetupComplete(t *testing.T) {
	early := []byte{9, 9}
	chunk := []byte{1, 0}

	conn := newFakeConn(nil,
		audioFrame(t, "audio/pcm;rate=24000", early),
		setupCompleteFrame,
		audioFrame(t, "audio/pcm;rate=24000", chunk),
		turnCompleteFrame,
	)
	session, out := newTestSession(t, &fakeDialer{conn: conn}, false)

	_, err := session.Run(context.Background(), "Hello")
	require.NoError(t, err)

	payload, _ := readPayload(t, out)
	assert.Equal(t, chunk, payload)
}

func TestSession_SkipsNonPCMParts(t *testing.T) {
	chunk := []byte{1, 0}
	conn := newFakeConn(nil,
		setupCompleteFrame,
		[]byte(`{"serverContent":{"modelTurn":{"parts":[{"text":"thinking"},{"inlineData":{"mimeType":"image/png","data":"AAAA"}}]}}}`),
		audioFrame(t, "audio/pcm;rate=24000", chunk),
		turnCompleteFrame,
	)
	session, out := newTestSession(t, &fakeDialer{conn: conn}, false)

	result, err := session.Run(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Chunks)

	payload, _ := readPayload(t, out)
	assert.Equal(t, chunk, payload)
}

func TestSession_SampleRateFromMimeType(t *testing.T) {
	conn := newFakeConn(nil,
		setupCompleteFrame,
		audioFrame(t, "audio/pcm;rate=16000", []byte{1, 0, 2, 0}),
		turnCompleteFrame,
	)
	session, out := newTestSession(t, &fakeDialer{conn: conn}, false)

	result, err := session.Run(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, 16000, result.SampleRate)

	_, format := readPayload(t, out)
	assert.Equal(t, 16000, format.SampleRate)
}

func TestSession_Normalizes(t *testing.T) {
	conn := newFakeConn(nil,
		setupCompleteFrame,
		audioFrame(t, "audio/pcm;rate=24000", audio.SamplesToBytes([]int16{16384, -8192})),
		turnCompleteFrame,
	)
	session, out := newTestSession(t, &fakeDialer{conn: conn}, true)

	_, err := session.Run(context.Background(), "Hello")
	require.NoError(t, err)

	payload, _ := readPayload(t, out)
	samples, err := audio.BytesToSamples(payload)
	require.NoError(t, err)
	assert.Equal(t, []int16{31128, -15564}, samples)
}

func TestSession_CloseBeforeTurnComplete(t *testing.T) {
	conn := newFakeConn(
		&websocket.CloseError{Code: websocket.CloseInternalServerErr, Text: "internal"},
		setupCompleteFrame,
		audioFrame(t, "audio/pcm;rate=24000", []byte{1, 0}),
	)
	session, out := newTestSession(t, &fakeDialer{conn: conn}, false)

	result, err := session.Run(context.Background(), "Hello")
	assert.Nil(t, result)

	var closeErr *CloseError
	require.True(t, errors.As(err, &closeErr), "expected CloseError, got %v", err)
	assert.Equal(t, 1011, closeErr.Code)
	assert.Equal(t, StateAwaitingAudio, closeErr.State)
	assert.Contains(t, closeErr.Error(), "internal error")

	assert.Equal(t, StateClosed, session.State())
	transitions := session.Transitions()
	require.GreaterOrEqual(t, len(transitions), 2)
	assert.Equal(t, StateError, transitions[len(transitions)-2].To)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSession_NormalCloseBeforeSetupIsAnError(t *testing.T) {
	conn := newFakeConn(&websocket.CloseError{Code: websocket.CloseNormalClosure})
	session, _ := newTestSession(t, &fakeDialer{conn: conn}, false)

	_, err := session.Run(context.Background(), "Hello")

	var closeErr *CloseError
	require.True(t, errors.As(err, &closeErr))
	assert.Equal(t, StateSetupSent, closeErr.State)
}

func TestSession_TransportError(t *testing.T) {
	conn := newFakeConn(errors.New("connection reset by peer"), setupCompleteFrame)
	session, _ := newTestSession(t, &fakeDialer{conn: conn}, false)

	_, err := session.Run(context.Background(), "Hello")
	require.Error(t, err)

	var closeErr *CloseError
	assert.False(t, errors.As(err, &closeErr))
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestSession_DialError(t *testing.T) {
	session, _ := newTestSession(t, &fakeDialer{err: errors.New("dial failed")}, false)

	_, err := session.Run(context.Background(), "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial failed")
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_MalformedFrame(t *testing.T) {
	conn := newFakeConn(nil, setupCompleteFrame, []byte(`{"serverContent":`))
	session, _ := newTestSession(t, &fakeDialer{conn: conn}, false)

	_, err := session.Run(context.Background(), "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed server message")
}

func TestSession_ContextTimeout(t *testing.T) {
	conn := newFakeConn(nil, setupCompleteFrame)
	session, _ := newTestSession(t, &fakeDialer{conn: conn}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := session.Run(ctx, "Hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_EmptyText(t *testing.T) {
	session, _ := newTestSession(t, &fakeDialer{err: errors.New("should not dial")}, false)

	_, err := session.Run(context.Background(), "  ")
	assert.ErrorIs(t, err, tts.ErrEmptyText)
}

func mustMarshal(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
