package hooks

import (
	"time"

	"github.com/google/uuid"

	"github.com/compresr/context-hooks/internal/adapters"
)

// CallType is the kind of API call the host is making.
type CallType string

const (
	CallTypeCompletion         CallType = "completion"
	CallTypeTextCompletion     CallType = "text_completion"
	CallTypeEmbeddings         CallType = "embeddings"
	CallTypeImageGeneration    CallType = "image_generation"
	CallTypeModeration         CallType = "moderation"
	CallTypeAudioTranscription CallType = "audio_transcription"
)

// =============================================================================
// REQUEST
// =============================================================================

// Request is the host's request as seen by hooks.
// Body is the raw provider payload; hooks never modify it in place and
// return a new Request (see WithBody) when they change anything.
type Request struct {
	RequestID  string
	Provider   adapters.Provider
	Adapter    adapters.Adapter
	Model      string
	CallType   CallType
	Body       []byte
	ReceivedAt time.Time
}

// NewRequest builds a Request for a raw payload.
// The model is read through the adapter and a request ID is generated.
func NewRequest(adapter adapters.Adapter, body []byte) *Request {
	req := &Request{
		RequestID:  uuid.New().String(),
		CallType:   CallTypeCompletion,
		Body:       body,
		ReceivedAt: time.Now(),
	}
	if adapter != nil {
		req.Adapter = adapter
		req.Provider = adapter.Provider()
		req.Model = adapter.ExtractModel(body)
	}
	return req
}

// WithBody returns a shallow copy of the request carrying a new body.
func (r *Request) WithBody(body []byte) *Request {
	clone := *r
	clone.Body = body
	return &clone
}

// Messages returns the request message list through the adapter.
func (r *Request) Messages() ([]adapters.Message, error) {
	if r.Adapter == nil {
		return adapters.NewOpenAIAdapter().ExtractMessages(r.Body)
	}
	return r.Adapter.ExtractMessages(r.Body)
}

// =============================================================================
// RESPONSE
// =============================================================================

// Response is the backend's answer (or failure) as seen by post-call hooks.
// Payload optionally carries a host-side structured value that is logged
// when Body is empty.
type Response struct {
	RequestID  string
	Provider   adapters.Provider
	Adapter    adapters.Adapter
	Model      string
	StatusCode int
	Body       []byte
	Payload    any
	Err        error
	Latency    time.Duration
}

// NewResponse builds a Response that belongs to req.
func NewResponse(req *Request, statusCode int, body []byte, err error) *Response {
	resp := &Response{
		StatusCode: statusCode,
		Body:       body,
		Err:        err,
	}
	if req != nil {
		resp.RequestID = req.RequestID
		resp.Provider = req.Provider
		resp.Adapter = req.Adapter
		resp.Model = req.Model
		if !req.ReceivedAt.IsZero() {
			resp.Latency = time.Since(req.ReceivedAt)
		}
	}
	return resp
}

// Success reports whether the backend call succeeded.
// A zero status code means the host did not report one.
func (r *Response) Success() bool {
	return r.Err == nil && r.StatusCode < 400
}

// WithBody returns a shallow copy of the response carrying a new body.
func (r *Response) WithBody(body []byte) *Response {
	clone := *r
	clone.Body = body
	return &clone
}
