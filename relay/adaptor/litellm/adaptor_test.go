package litellm

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didgateway/llm-gateway/relay/adaptor"
)

func TestNativeUsdCost(t *testing.T) {
	a := &Adaptor{}

	tests := []struct {
		name     string
		header   string
		wantCost float64
		wantOk   bool
	}{
		{name: "valid cost", header: "0.00123", wantCost: 0.00123, wantOk: true},
		{name: "missing header", header: "", wantOk: false},
		{name: "garbage header", header: "free", wantOk: false},
		{name: "negative cost rejected", header: "-1", wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set(CostHeader, tt.header)
			}
			cost, ok := a.NativeUsdCost(resp)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.InDelta(t, tt.wantCost, cost, 1e-12)
			}
		})
	}
}

func TestSupportsNativeUSDCost(t *testing.T) {
	assert.True(t, (&Adaptor{}).SupportsNativeUSDCost())
}

func TestGetRequestURLRequiresBaseURL(t *testing.T) {
	a := &Adaptor{}
	_, err := a.GetRequestURL(&adaptor.Meta{TargetPath: "/v1/chat/completions"})
	require.Error(t, err)

	url, err := a.GetRequestURL(&adaptor.Meta{
		BaseURL:    "http://litellm.internal:4000",
		TargetPath: "/v1/chat/completions",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://litellm.internal:4000/v1/chat/completions", url)
}
