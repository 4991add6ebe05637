// Package interactionlog records pre-call and post-call content for verification.
//
// DESIGN: One structured record per call point, written by a dedicated
// zerolog logger to an injected sink (default stderr):
//
//	pre_call:  time, request_id, provider, model, call_type, message_count, messages, tokens?
//	post_call: time, request_id, provider, model, status, success, latency, usage, content | error
//
// The sink is wrapped in zerolog.SyncWriter, so each record is one locked
// write and concurrent requests never interleave. The hook is observational:
// it returns the request/response it was given and never an error. Payloads
// that are not JSON are logged as raw text with a "could not serialize"
// message; any other fault (panicking writer, panicking Stringer) is
// recovered and replaced by a single fallback line.
package interactionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/compresr/context-hooks/internal/adapters"
	"github.com/compresr/context-hooks/internal/config"
	"github.com/compresr/context-hooks/internal/hooks"
	"github.com/compresr/context-hooks/internal/monitoring"
)

// Record messages.
const (
	msgPreCall           = "pre-call"
	msgPostCall          = "post-call"
	msgPreCallDegraded   = "pre-call messages (could not serialize to JSON)"
	msgPostCallDegraded  = "post-call response (could not serialize to JSON)"
	truncatedMarkerFmt   = "...[truncated %d bytes]"
	consoleMessagesLabel = "pre-call messages:\n"
)

// Logger is the interaction logging hook.
type Logger struct {
	enabled bool
	cfg     hooks.InteractionLogConfig
	console bool
	zl      zerolog.Logger
	out     io.Writer // synchronized sink, also used for fallback lines
	closer  io.Closer
	encoder *tiktoken.Tiktoken
	metrics *monitoring.MetricsCollector
}

// New creates a new interaction logger writing to sink.
// A nil sink opens the configured output (stdout, stderr or a file).
// metrics may be nil.
func New(cfg *config.Config, sink io.Writer, metrics *monitoring.MetricsCollector) *Logger {
	lc := cfg.Hooks.InteractionLog
	l := &Logger{
		enabled: lc.Enabled,
		cfg:     lc,
		console: lc.FormatOrDefault() == monitoring.FormatConsole,
		metrics: metrics,
	}

	if sink == nil {
		w, closer, err := monitoring.OpenOutput(lc.OutputOrDefault())
		if err != nil {
			log.Warn().Err(err).Msg("interaction_log: falling back to stderr")
			w, closer = os.Stderr, nil
		}
		sink, l.closer = w, closer
	}
	l.out = zerolog.SyncWriter(sink)

	var w io.Writer = l.out
	if l.console {
		w = zerolog.ConsoleWriter{Out: l.out, NoColor: true, TimeFormat: time.RFC3339}
	}
	l.zl = zerolog.New(w).With().Timestamp().Logger()

	// Tokenizer loading may touch the network; keep it off the request path.
	if lc.Enabled && lc.CountTokens {
		enc, err := tiktoken.GetEncoding(lc.EncodingOrDefault())
		if err != nil {
			log.Warn().Err(err).Str("encoding", lc.EncodingOrDefault()).Msg("interaction_log: token counting disabled")
		} else {
			l.encoder = enc
		}
	}

	return l
}

// Name returns the hook name.
func (l *Logger) Name() string {
	return hooks.NameInteractionLog
}

// Priority returns the hook priority.
func (l *Logger) Priority() int {
	return hooks.PriorityInteractionLog
}

// Enabled returns whether the hook is active.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Close closes the sink when the logger opened it itself.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// PreCall records the request about to be sent. req is returned unchanged.
func (l *Logger) PreCall(_ context.Context, req *hooks.Request) (*hooks.Request, error) {
	if !l.enabled || req == nil {
		return req, nil
	}
	l.guard(monitoring.CallSitePreCall, req.RequestID, func() {
		l.logPreCall(req)
	})
	return req, nil
}

// PostCall records the response (or failure). resp is returned unchanged.
func (l *Logger) PostCall(_ context.Context, resp *hooks.Response) (*hooks.Response, error) {
	if !l.enabled || resp == nil {
		return resp, nil
	}
	l.guard(monitoring.CallSitePostCall, resp.RequestID, func() {
		l.logPostCall(resp)
	})
	return resp, nil
}

func (l *Logger) logPreCall(req *hooks.Request) {
	event := l.zl.Info().
		Str("call_site", string(monitoring.CallSitePreCall)).
		Str("request_id", req.RequestID).
		Str("provider", req.Provider.String()).
		Str("model", req.Model).
		Str("call_type", string(req.CallType))

	if !gjson.ValidBytes(req.Body) {
		event.Bool("serializable", false).
			Str("messages_raw", l.truncate(string(req.Body))).
			Msg(msgPreCallDegraded)
		return
	}

	list := gjson.GetBytes(req.Body, adapters.MessagesPath)
	count := 0
	if list.IsArray() {
		count = len(list.Array())
	}
	event.Int("message_count", count)

	if l.encoder != nil {
		event.Int("tokens", l.countTokens(req))
	}

	if !list.Exists() {
		event.Msg(msgPreCall)
		return
	}

	if l.console {
		dump := list.Raw
		if l.cfg.PrettyMessages {
			dump = gjson.Get(list.Raw, "@pretty").Raw
		}
		event.Msg(consoleMessagesLabel + l.truncate(strings.TrimRight(dump, "\n")))
		return
	}

	l.rawJSON(event, "messages", list.Raw).Msg(msgPreCall)
}

func (l *Logger) logPostCall(resp *hooks.Response) {
	success := resp.Success()
	event := l.zl.Info()
	if !success {
		event = l.zl.Warn()
	}
	event = event.
		Str("call_site", string(monitoring.CallSitePostCall)).
		Str("request_id", resp.RequestID).
		Str("provider", resp.Provider.String()).
		Str("model", resp.Model).
		Int("status", resp.StatusCode).
		Bool("success", success).
		Dur("latency", resp.Latency)
	if resp.Err != nil {
		event = event.Err(resp.Err)
	}

	body := resp.Body
	if len(body) == 0 && resp.Payload != nil {
		data, err := json.Marshal(resp.Payload)
		if err != nil {
			event.Bool("serializable", false).
				Str("payload_raw", l.truncate(fmt.Sprintf("%+v", resp.Payload))).
				Msg(msgPostCallDegraded)
			return
		}
		body = data
	}

	if len(body) == 0 {
		event.Msg(msgPostCall)
		return
	}

	if !gjson.ValidBytes(body) {
		event.Bool("serializable", false).
			Str("response_raw", l.truncate(string(body))).
			Msg(msgPostCallDegraded)
		return
	}

	adapter := resp.Adapter
	if adapter == nil {
		adapter = adapters.NewOpenAIAdapter()
	}

	if usage := adapter.ExtractUsage(body); usage.TotalTokens > 0 {
		event = event.
			Int("input_tokens", usage.InputTokens).
			Int("output_tokens", usage.OutputTokens).
			Int("total_tokens", usage.TotalTokens)
	}

	if text := adapter.ExtractResponseText(body); text != "" {
		event.Str("content", l.truncate(text)).Msg(msgPostCall)
		return
	}

	l.rawJSON(event, "response", string(body)).Msg(msgPostCall)
}

// rawJSON embeds raw as compact JSON, or as a truncated string when it
// exceeds max_content_bytes (cutting JSON would make the record unparseable).
func (l *Logger) rawJSON(event *zerolog.Event, key, raw string) *zerolog.Event {
	raw = gjson.Get(raw, "@ugly").Raw
	if l.cfg.MaxContentBytes > 0 && len(raw) > l.cfg.MaxContentBytes {
		return event.Str(key+"_truncated", l.truncate(raw))
	}
	if l.console {
		return event.Str(key, raw)
	}
	return event.RawJSON(key, []byte(raw))
}

// countTokens estimates the prompt size of the request messages.
func (l *Logger) countTokens(req *hooks.Request) int {
	messages, err := req.Messages()
	if err != nil {
		return 0
	}
	total := 0
	for _, msg := range messages {
		if text := msg.Text("\n"); text != "" {
			total += len(l.encoder.Encode(text, nil, nil))
		}
	}
	return total
}

// truncate cuts s to max_content_bytes on a rune boundary.
func (l *Logger) truncate(s string) string {
	limit := l.cfg.MaxContentBytes
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf(truncatedMarkerFmt, len(s)-cut)
}

// guard runs fn and turns any panic into one fallback line.
func (l *Logger) guard(site monitoring.CallSite, requestID string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			l.metrics.RecordFault(l.Name(), site, monitoring.FaultPanic)
			l.fallback(site, requestID, p)
		}
	}()
	fn()
}

// fallback writes a plain-text line straight to the sink.
// A sink that panics again is given up on silently.
func (l *Logger) fallback(site monitoring.CallSite, requestID string, cause any) {
	defer func() { _ = recover() }()
	line := fmt.Sprintf("%s WRN interaction_log degraded call_site=%s request_id=%s cause=%v\n",
		time.Now().UTC().Format(time.RFC3339), site, requestID, cause)
	_, _ = l.out.Write([]byte(line))
}

// Ensure Logger implements both call points
var (
	_ hooks.PreCallHook  = (*Logger)(nil)
	_ hooks.PostCallHook = (*Logger)(nil)
)
