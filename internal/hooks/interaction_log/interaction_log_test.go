package interactionlog_test

// Interaction logger tests
//
// Records are written to a bytes.Buffer sink and parsed back line by line.

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/context-hooks/internal/adapters"
	"github.com/compresr/context-hooks/internal/config"
	"github.com/compresr/context-hooks/internal/hooks"
	interactionlog "github.com/compresr/context-hooks/internal/hooks/interaction_log"
	"github.com/compresr/context-hooks/internal/monitoring"
)

func TestMain(m *testing.M) {
	// Silence logs during tests
	log.Logger = zerolog.New(io.Discard)
	os.Exit(m.Run())
}

// =============================================================================
// HELPERS
// =============================================================================

// overlapSink records writes without any locking of its own and flags any
// two Write calls that are in flight at the same time.
type overlapSink struct {
	inFlight atomic.Int32
	overlap  atomic.Bool
	lines    [][]byte
}

func (s *overlapSink) Write(p []byte) (int, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)

	// Widen the window so unsynchronized writers collide.
	time.Sleep(100 * time.Microsecond)
	s.lines = append(s.lines, bytes.Clone(p))
	return len(p), nil
}

func (s *overlapSink) String() string {
	return string(bytes.Join(s.lines, nil))
}

// panicWriter panics on every write.
type panicWriter struct{}

func (panicWriter) Write([]byte) (int, error) { panic("sink exploded") }

// panicOnceWriter panics on the first write and records the rest.
type panicOnceWriter struct {
	panicked bool
	buf      bytes.Buffer
}

func (w *panicOnceWriter) Write(p []byte) (int, error) {
	if !w.panicked {
		w.panicked = true
		panic("first write failed")
	}
	return w.buf.Write(p)
}

func testConfig(lc hooks.InteractionLogConfig) *config.Config {
	lc.Enabled = true
	return &config.Config{Hooks: config.HooksConfig{InteractionLog: lc}}
}

func records(t *testing.T, out string) []map[string]any {
	t.Helper()
	var result []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "line is not JSON: %s", line)
		result = append(result, rec)
	}
	return result
}

const chatRequest = `{
	"model": "gpt-4o",
	"messages": [
		{"role": "system", "content": "be brief"},
		{"role": "user", "content": "hi"}
	]
}`

// =============================================================================
// PRE-CALL
// =============================================================================

func TestPreCall_WritesRecord(t *testing.T) {
	var sink bytes.Buffer
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

	assert.Equal(t, hooks.NameInteractionLog, l.Name())
	assert.Equal(t, hooks.PriorityInteractionLog, l.Priority())

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
	out, err := l.PreCall(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, req, out)
	assert.Equal(t, chatRequest, string(req.Body))

	recs := records(t, sink.String())
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.Equal(t, "pre-call", rec["message"])
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "pre_call", rec["call_site"])
	assert.Equal(t, req.RequestID, rec["request_id"])
	assert.Equal(t, "openai", rec["provider"])
	assert.Equal(t, "gpt-4o", rec["model"])
	assert.Equal(t, "completion", rec["call_type"])
	assert.EqualValues(t, 2, rec["message_count"])
	assert.NotEmpty(t, rec["time"])

	messages, ok := rec["messages"].([]any)
	require.True(t, ok, "messages are embedded as JSON")
	require.Len(t, messages, 2)
	assert.Equal(t, "be brief", messages[0].(map[string]any)["content"])
}

func TestPreCall_InvalidJSON(t *testing.T) {
	var sink bytes.Buffer
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(`{"messages": [oops`))
	out, err := l.PreCall(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, req, out)

	recs := records(t, sink.String())
	require.Len(t, recs, 1)
	assert.Equal(t, "pre-call messages (could not serialize to JSON)", recs[0]["message"])
	assert.Equal(t, false, recs[0]["serializable"])
	assert.Equal(t, `{"messages": [oops`, recs[0]["messages_raw"])
}

func TestPreCall_NoMessages(t *testing.T) {
	var sink bytes.Buffer
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(`{"model":"text-embedding-3-small","input":"x"}`))
	req.CallType = hooks.CallTypeEmbeddings
	_, err := l.PreCall(context.Background(), req)
	require.NoError(t, err)

	recs := records(t, sink.String())
	require.Len(t, recs, 1)
	assert.EqualValues(t, 0, recs[0]["message_count"])
	assert.Equal(t, "embeddings", recs[0]["call_type"])
	assert.NotContains(t, recs[0], "messages")
}

func TestPreCall_Truncation(t *testing.T) {
	var sink bytes.Buffer
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{MaxContentBytes: 32}), &sink, nil)

	long := strings.Repeat("x", 200)
	req := hooks.NewRequest(adapters.NewOpenAIAdapter(),
		[]byte(`{"messages":[{"role":"user","content":"`+long+`"}]}`))
	_, err := l.PreCall(context.Background(), req)
	require.NoError(t, err)

	recs := records(t, sink.String())
	require.Len(t, recs, 1)
	assert.NotContains(t, recs[0], "messages")

	truncated, ok := recs[0]["messages_truncated"].(string)
	require.True(t, ok)
	assert.Contains(t, truncated, "...[truncated ")
	assert.Less(t, len(truncated), 100)
}

func TestPreCall_CompactsMultilineMessages(t *testing.T) {
	var sink bytes.Buffer
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
	_, err := l.PreCall(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(sink.String(), "\n"), "one record per line")
}

func TestPreCall_ConsoleFormat(t *testing.T) {
	var sink bytes.Buffer
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{
		Format:         monitoring.FormatConsole,
		PrettyMessages: true,
	}), &sink, nil)

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
	_, err := l.PreCall(context.Background(), req)
	require.NoError(t, err)

	out := sink.String()
	assert.Contains(t, out, "pre-call messages:")
	assert.Contains(t, out, `"role": "system"`, "pretty printed")
	assert.Contains(t, out, "request_id="+req.RequestID)
}

func TestPreCall_TokenCounting(t *testing.T) {
	t.Run("counts_message_tokens", func(t *testing.T) {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			t.Skipf("cl100k_base encoding unavailable: %v", err)
		}

		var sink bytes.Buffer
		l := interactionlog.New(testConfig(hooks.InteractionLogConfig{CountTokens: true}), &sink, nil)

		req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
		out, err := l.PreCall(context.Background(), req)
		require.NoError(t, err)
		assert.Same(t, req, out)

		expected := len(enc.Encode("be brief", nil, nil)) + len(enc.Encode("hi", nil, nil))

		recs := records(t, sink.String())
		require.Len(t, recs, 1)
		assert.EqualValues(t, expected, recs[0]["tokens"])
		assert.Greater(t, expected, 0)
	})

	t.Run("unknown_encoding_disables_counting", func(t *testing.T) {
		var sink bytes.Buffer
		l := interactionlog.New(testConfig(hooks.InteractionLogConfig{
			CountTokens: true,
			Encoding:    "no_such_encoding",
		}), &sink, nil)

		req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
		_, err := l.PreCall(context.Background(), req)
		require.NoError(t, err)

		recs := records(t, sink.String())
		require.Len(t, recs, 1)
		assert.NotContains(t, recs[0], "tokens")
		assert.Equal(t, "pre-call", recs[0]["message"])
	})

	t.Run("off_by_default", func(t *testing.T) {
		var sink bytes.Buffer
		l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

		_, err := l.PreCall(context.Background(), hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest)))
		require.NoError(t, err)
		assert.NotContains(t, records(t, sink.String())[0], "tokens")
	})
}

// =============================================================================
// POST-CALL
// =============================================================================

func TestPostCall_Success(t *testing.T) {
	var sink bytes.Buffer
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
	body := []byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}],"usage":{"prompt_tokens":9,"completion_tokens":1,"total_tokens":10}}`)
	resp := hooks.NewResponse(req, 200, body, nil)

	out, err := l.PostCall(context.Background(), resp)
	require.NoError(t, err)
	assert.Same(t, resp, out)

	recs := records(t, sink.String())
	require.Len(t, recs, 1)
	rec := recs[0]

	assert.Equal(t, "post-call", rec["message"])
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "post_call", rec["call_site"])
	assert.Equal(t, req.RequestID, rec["request_id"])
	assert.EqualValues(t, 200, rec["status"])
	assert.Equal(t, true, rec["success"])
	assert.Equal(t, "hello", rec["content"])
	assert.EqualValues(t, 9, rec["input_tokens"])
	assert.EqualValues(t, 1, rec["output_tokens"])
	assert.EqualValues(t, 10, rec["total_tokens"])
	assert.Contains(t, rec, "latency")
}

func TestPostCall_Failure(t *testing.T) {
	var sink bytes.Buffer
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

	resp := &hooks.Response{
		RequestID: "req-1",
		Adapter:   adapters.NewOpenAIAdapter(),
		Provider:  adapters.ProviderOpenAI,
		Err:       errors.New("upstream timeout"),
		Latency:   1500 * time.Millisecond,
	}
	_, err := l.PostCall(context.Background(), resp)
	require.NoError(t, err)

	recs := records(t, sink.String())
	require.Len(t, recs, 1)
	assert.Equal(t, "warn", recs[0]["level"])
	assert.Equal(t, false, recs[0]["success"])
	assert.Equal(t, "upstream timeout", recs[0]["error"])
	assert.Equal(t, "req-1", recs[0]["request_id"])
}

func TestPostCall_ErrorBody(t *testing.T) {
	var sink bytes.Buffer
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

	resp := &hooks.Response{
		RequestID:  "req-2",
		Adapter:    adapters.NewAnthropicAdapter(),
		StatusCode: 429,
		Body:       []byte(`{"type":"error","error":{"type":"rate_limit_error"}}`),
	}
	_, err := l.PostCall(context.Background(), resp)
	require.NoError(t, err)

	recs := records(t, sink.String())
	require.Len(t, recs, 1)
	assert.Equal(t, "warn", recs[0]["level"])

	embedded, ok := recs[0]["response"].(map[string]any)
	require.True(t, ok, "body without text is embedded as JSON")
	assert.Equal(t, "error", embedded["type"])
}

func TestPostCall_Payload(t *testing.T) {
	t.Run("serializable", func(t *testing.T) {
		var sink bytes.Buffer
		l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

		resp := &hooks.Response{
			RequestID: "req-3",
			Payload:   map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "from payload"}}}},
		}
		_, err := l.PostCall(context.Background(), resp)
		require.NoError(t, err)

		recs := records(t, sink.String())
		require.Len(t, recs, 1)
		assert.Equal(t, "from payload", recs[0]["content"])
	})

	t.Run("not_serializable", func(t *testing.T) {
		var sink bytes.Buffer
		l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

		resp := &hooks.Response{RequestID: "req-4", Payload: make(chan int)}
		out, err := l.PostCall(context.Background(), resp)
		require.NoError(t, err)
		assert.Same(t, resp, out)

		recs := records(t, sink.String())
		require.Len(t, recs, 1)
		assert.Equal(t, "post-call response (could not serialize to JSON)", recs[0]["message"])
		assert.Equal(t, false, recs[0]["serializable"])
		assert.NotEmpty(t, recs[0]["payload_raw"])
	})

	t.Run("invalid_body", func(t *testing.T) {
		var sink bytes.Buffer
		l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), &sink, nil)

		_, err := l.PostCall(context.Background(), &hooks.Response{RequestID: "req-5", Body: []byte("<html>bad gateway</html>")})
		require.NoError(t, err)

		recs := records(t, sink.String())
		require.Len(t, recs, 1)
		assert.Equal(t, "<html>bad gateway</html>", recs[0]["response_raw"])
	})
}

// =============================================================================
// FAULT TOLERANCE
// =============================================================================

func TestPanickingSinkNeverEscapes(t *testing.T) {
	metrics := monitoring.NewMetricsCollector()
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), panicWriter{}, metrics)

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
	resp := hooks.NewResponse(req, 200, []byte(`{}`), nil)

	require.NotPanics(t, func() {
		out, err := l.PreCall(context.Background(), req)
		assert.NoError(t, err)
		assert.Same(t, req, out)

		outResp, err := l.PostCall(context.Background(), resp)
		assert.NoError(t, err)
		assert.Same(t, resp, outResp)
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Faults.WithLabelValues(
		hooks.NameInteractionLog, string(monitoring.CallSitePreCall), string(monitoring.FaultPanic))))
}

func TestFallbackLine(t *testing.T) {
	sink := &panicOnceWriter{}
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), sink, nil)

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
	require.NotPanics(t, func() {
		_, _ = l.PreCall(context.Background(), req)
	})

	line := sink.buf.String()
	assert.Contains(t, line, "interaction_log degraded")
	assert.Contains(t, line, "call_site=pre_call")
	assert.Contains(t, line, "request_id="+req.RequestID)
	assert.Contains(t, line, "cause=first write failed")
}

func TestConcurrentRecordsDoNotInterleave(t *testing.T) {
	sink := &overlapSink{}
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{}), sink, nil)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
			_, _ = l.PreCall(context.Background(), req)
			_, _ = l.PostCall(context.Background(), hooks.NewResponse(req, 200,
				[]byte(`{"choices":[{"message":{"content":"ok"}}]}`), nil))
		}()
	}
	wg.Wait()

	assert.False(t, sink.overlap.Load(), "sink saw concurrent writes")
	recs := records(t, sink.String())
	assert.Len(t, recs, workers*2)
}

func TestDisabledWritesNothing(t *testing.T) {
	var sink bytes.Buffer
	cfg := &config.Config{Hooks: config.HooksConfig{InteractionLog: hooks.InteractionLogConfig{Enabled: false}}}
	l := interactionlog.New(cfg, &sink, nil)
	assert.False(t, l.Enabled())

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
	_, _ = l.PreCall(context.Background(), req)
	_, _ = l.PostCall(context.Background(), hooks.NewResponse(req, 200, nil, nil))

	assert.Empty(t, sink.String())
	assert.NoError(t, l.Close())
}

func TestFileOutput(t *testing.T) {
	path := t.TempDir() + "/logs/interactions.jsonl"
	l := interactionlog.New(testConfig(hooks.InteractionLogConfig{Output: path}), nil, nil)

	req := hooks.NewRequest(adapters.NewOpenAIAdapter(), []byte(chatRequest))
	_, err := l.PreCall(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	recs := records(t, string(data))
	require.Len(t, recs, 1)
	assert.Equal(t, req.RequestID, recs[0]["request_id"])
}
