package streaming

import (
	"bytes"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tidwall/gjson"
)

var (
	tokenEncoderCache = map[string]*tiktoken.Tiktoken{}
	tokenEncoderMu    sync.Mutex
)

func getTokenEncoder(model string) *tiktoken.Tiktoken {
	tokenEncoderMu.Lock()
	defer tokenEncoderMu.Unlock()
	if enc, ok := tokenEncoderCache[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil
		}
	}
	tokenEncoderCache[model] = enc
	return enc
}

// CountTokenText estimates the token count of text for a model, falling back
// to cl100k_base for unknown models.
func CountTokenText(text, model string) int {
	if text == "" {
		return 0
	}
	enc := getTokenEncoder(model)
	if enc == nil {
		// roughly four bytes per token
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// textFields are the delta-content locations tried, in order, when
// reconstructing completion text from captured frames.
var textFields = []string{
	"choices.0.delta.content",
	"delta.text",
	"candidates.0.content.parts.0.text",
}

// EstimateCompletionTokens reconstructs completion text from captured stream
// frames and counts its tokens. Used only when the upstream never sent a
// usage frame; results are marked estimated.
func EstimateCompletionTokens(frames []byte, model string) int {
	var sb strings.Builder
	for _, line := range bytes.Split(frames, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := strings.TrimSpace(string(line[len("data:"):]))
		if data == "" || data == "[DONE]" {
			continue
		}
		root := gjson.Parse(data)
		for _, field := range textFields {
			if v := root.Get(field); v.Exists() {
				sb.WriteString(v.String())
				break
			}
		}
	}
	return CountTokenText(sb.String(), model)
}
