package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/didgateway/llm-gateway/common/helper"
	"github.com/didgateway/llm-gateway/relay/adaptor"
	"github.com/didgateway/llm-gateway/relay/provider"
)

// testTimeout bounds one diagnostic probe.
const testTimeout = 20 * time.Second

// TestProvider sends a minimal completion to the provider's cheapest test
// model and reports the upstream verdict. Admin only.
func TestProvider(registry *provider.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("provider")
		pv, ok := registry.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"message": "unknown provider: " + name,
					"type":    "gateway_error",
					"code":    "provider_not_found",
				},
			})
			return
		}
		if !pv.Available() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": gin.H{
					"message": "provider " + name + " is not configured",
					"type":    "gateway_error",
					"code":    "provider_overloaded",
				},
			})
			return
		}

		models := pv.Adaptor.TestModels()
		if len(models) == 0 {
			c.JSON(http.StatusOK, gin.H{"provider": name, "skipped": true})
			return
		}

		start := time.Now()
		status, err := probeProvider(c.Request.Context(), pv, models[0])
		elapsed := time.Since(start)
		if err != nil {
			gmw.GetLogger(c).Warn("provider probe failed",
				zap.String("provider", name),
				zap.String("api_key", helper.MaskAPIKey(pv.APIKey)),
				zap.Error(err))
			c.JSON(http.StatusOK, gin.H{
				"provider":  name,
				"model":     models[0],
				"ok":        false,
				"error":     err.Error(),
				"elapsedMs": elapsed.Milliseconds(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"provider":  name,
			"model":     models[0],
			"ok":        status < http.StatusBadRequest,
			"status":    status,
			"elapsedMs": elapsed.Milliseconds(),
		})
	}
}

// probeProvider runs a one-token chat completion through the provider's
// adapter the same way the relay path would.
func probeProvider(ctx context.Context, pv *provider.Provider, model string) (int, error) {
	body, err := json.Marshal(map[string]any{
		"model":      model,
		"messages":   []map[string]string{{"role": "user", "content": "hi"}},
		"max_tokens": 1,
	})
	if err != nil {
		return 0, err
	}

	meta := &adaptor.Meta{
		Provider:   pv.Name,
		BaseURL:    pv.BaseURL,
		APIKey:     pv.APIKey,
		TargetPath: "/v1/chat/completions",
		Model:      model,
	}
	url, err := pv.Adaptor.GetRequestURL(meta)
	if err != nil {
		return 0, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	pv.Adaptor.SetupRequestHeader(req, meta)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, nil
}
