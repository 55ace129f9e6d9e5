package render

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
)

// StringData writes a single SSE data frame and flushes it immediately.
func StringData(c *gin.Context, str string) error {
	str = strings.TrimPrefix(str, "data:")
	str = strings.TrimSuffix(str, "\r")
	c.Render(-1, CustomEvent{Data: "data: " + strings.TrimSpace(str)})
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return errors.New("streaming error: flush not supported")
	}
	flusher.Flush()
	return nil
}

// ObjectData marshals the object and writes it as an SSE data frame.
func ObjectData(c *gin.Context, object any) error {
	jsonData, err := json.Marshal(object)
	if err != nil {
		return errors.Wrap(err, "error marshalling object")
	}
	return StringData(c, string(jsonData))
}

// ErrorData writes a named error event so stream consumers can distinguish
// mid-stream failures from data frames.
func ErrorData(c *gin.Context, object any) error {
	jsonData, err := json.Marshal(object)
	if err != nil {
		return errors.Wrap(err, "error marshalling error object")
	}
	c.Render(-1, CustomEvent{Event: "error", Data: "data: " + string(jsonData)})
	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// Done terminates an SSE stream with the [DONE] sentinel.
func Done(c *gin.Context) {
	_ = StringData(c, "[DONE]")
}

// CustomEvent renders pre-formatted SSE frames without re-escaping the payload.
type CustomEvent struct {
	Event string
	Data  string
}

// Render implements gin render.Render.
func (r CustomEvent) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	if r.Event != "" {
		if _, err := io.WriteString(w, fmt.Sprintf("event: %s\n", r.Event)); err != nil {
			return errors.Wrap(err, "write event field")
		}
	}
	if _, err := io.WriteString(w, r.Data+"\n\n"); err != nil {
		return errors.Wrap(err, "write data field")
	}
	return nil
}

// WriteContentType implements gin render.Render.
func (r CustomEvent) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "text/event-stream")
	}
}
