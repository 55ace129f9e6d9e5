package streaming

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/didgateway/llm-gateway/common/render"
	"github.com/didgateway/llm-gateway/relay/adaptor"
	relaymodel "github.com/didgateway/llm-gateway/relay/model"
)

// State tracks the transformer lifecycle. Transitions only move forward.
type State int

const (
	StateInitial State = iota
	StateStreaming
	StateTerminating
	StateFinalized
)

// captureCap bounds the raw-frame capture used for the tokenizer fallback
// when a stream ends without a usage frame.
const captureCap = 256 * 1024

// Transformer tees a streaming upstream body to the client verbatim while
// feeding an adapter extractor for usage accounting. One per request.
type Transformer struct {
	c           *gin.Context
	extractor   adaptor.StreamExtractor
	idleTimeout time.Duration
	// cancelUpstream aborts the upstream exchange; fired on idle timeout
	// and on client disconnect.
	cancelUpstream func()

	state    State
	bytesOut int64
	capture  bytes.Buffer
}

// New builds a transformer. cancelUpstream must abort the upstream request
// context so a stuck or abandoned stream releases its slot.
func New(c *gin.Context, extractor adaptor.StreamExtractor, idleTimeout time.Duration, cancelUpstream func()) *Transformer {
	return &Transformer{
		c:              c,
		extractor:      extractor,
		idleTimeout:    idleTimeout,
		cancelUpstream: cancelUpstream,
		state:          StateInitial,
	}
}

// State returns the current lifecycle state.
func (t *Transformer) State() State { return t.state }

// BytesOut returns the number of body bytes relayed downstream.
func (t *Transformer) BytesOut() int64 { return t.bytesOut }

// CapturedFrames returns the (capped) verbatim frames relayed, for fallback
// token estimation.
func (t *Transformer) CapturedFrames() []byte { return t.capture.Bytes() }

// Run relays the upstream body until EOF, error, idle timeout, or client
// disconnect. It returns the extracted usage (nil when no usage frame
// arrived) and a relay error for mid-stream failures. Bytes already sent are
// never retracted; mid-stream failures append an error event frame.
func (t *Transformer) Run(body io.Reader) (*relaymodel.Usage, error) {
	t.state = StateStreaming
	logger := gmw.GetLogger(t.c)

	idle := time.AfterFunc(t.idleTimeout, func() {
		logger.Warn("stream idle timeout, cancelling upstream")
		t.cancelUpstream()
	})
	defer idle.Stop()

	clientGone := t.c.Request.Context().Done()
	buf := make([]byte, 32*1024)
	flusher, _ := t.c.Writer.(http.Flusher)

	for {
		select {
		case <-clientGone:
			t.cancelUpstream()
			t.state = StateFinalized
			return t.finalUsage(), errors.New("client disconnected")
		default:
		}

		idle.Reset(t.idleTimeout)
		n, err := body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, werr := t.c.Writer.Write(chunk); werr != nil {
				t.cancelUpstream()
				t.state = StateFinalized
				return t.finalUsage(), errors.Wrap(werr, "write to client")
			}
			if flusher != nil {
				flusher.Flush()
			}
			t.extractor.ProcessChunk(chunk)
			t.bytesOut += int64(n)
			if t.capture.Len() < captureCap {
				room := captureCap - t.capture.Len()
				if room > len(chunk) {
					room = len(chunk)
				}
				t.capture.Write(chunk[:room])
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.state = StateTerminating
			t.emitErrorEvent(err)
			t.state = StateFinalized
			return t.finalUsage(), errors.Wrap(err, "read upstream stream")
		}
	}

	t.state = StateTerminating
	usage := t.finalUsage()
	t.state = StateFinalized
	return usage, nil
}

func (t *Transformer) finalUsage() *relaymodel.Usage {
	usage, ok := t.extractor.Usage()
	if !ok {
		return nil
	}
	return usage
}

// emitErrorEvent appends a named error event so clients can tell a truncated
// stream from a complete one.
func (t *Transformer) emitErrorEvent(err error) {
	payload := relaymodel.ErrorWithStatusCode{
		Error: relaymodel.Error{
			Message: err.Error(),
			Type:    "gateway_error",
			Code:    relaymodel.ErrCodeUpstreamError,
		},
	}
	if renderErr := render.ErrorData(t.c, payload); renderErr != nil {
		gmw.GetLogger(t.c).Warn("emit stream error event", zap.Error(renderErr))
	}
}
