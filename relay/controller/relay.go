package controller

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/didgateway/llm-gateway/common"
	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/common/ctxkey"
	"github.com/didgateway/llm-gateway/common/graceful"
	"github.com/didgateway/llm-gateway/common/helper"
	"github.com/didgateway/llm-gateway/monitor"
	"github.com/didgateway/llm-gateway/relay/billing"
	relaymodel "github.com/didgateway/llm-gateway/relay/model"
	"github.com/didgateway/llm-gateway/relay/pricing"
	"github.com/didgateway/llm-gateway/relay/provider"
	"github.com/didgateway/llm-gateway/relay/streaming"
)

// Orchestrator drives the relay pipeline: validate, price-gate, forward,
// account, bill.
type Orchestrator struct {
	Pricing   *pricing.Registry
	Providers *provider.Registry
	Billing   billing.Hook

	client *http.Client
}

// NewOrchestrator wires the relay pipeline. The shared client carries no
// global timeout; per-request contexts bound each exchange.
func NewOrchestrator(pr *pricing.Registry, reg *provider.Registry, hook billing.Hook) *Orchestrator {
	return &Orchestrator{
		Pricing:   pr,
		Providers: reg,
		Billing:   hook,
		client:    &http.Client{},
	}
}

// Relay handles one validated request. The distributor middleware has already
// resolved the provider and target path into the context.
func (o *Orchestrator) Relay(c *gin.Context) *relaymodel.ErrorWithStatusCode {
	logger := gmw.GetLogger(c)
	start := time.Now()

	pv, ok := c.MustGet(ctxkey.Provider).(*provider.Provider)
	if !ok {
		return openAIError(http.StatusInternalServerError,
			relaymodel.ErrCodeInternalError, "provider missing from context")
	}

	body, err := common.GetRequestBody(c)
	if err != nil {
		return openAIError(http.StatusBadRequest,
			relaymodel.ErrCodeInvalidRequest, err.Error())
	}

	targetPath := c.GetString(ctxkey.TargetPath)
	model := peekModel(body, targetPath)
	if model == "" && c.Request.Method == http.MethodPost {
		return openAIError(http.StatusBadRequest,
			relaymodel.ErrCodeModelNotSupported, "Model not specified")
	}
	isStream := peekStreaming(body, targetPath)
	c.Set(ctxkey.RequestModel, model)
	c.Set(ctxkey.Streaming, isStream)

	nativeCost := pv.Adaptor.SupportsNativeUSDCost()
	if model != "" && !o.Pricing.IsModelSupported(pv.Name, model, nativeCost) {
		return openAIError(http.StatusBadRequest, relaymodel.ErrCodeModelNotSupported,
			"model "+model+" is not supported")
	}
	validatedAt := time.Now()

	if err := pv.Acquire(c.Request.Context()); err != nil {
		if errors.Is(err, provider.ErrOverloaded) {
			return openAIError(http.StatusServiceUnavailable,
				relaymodel.ErrCodeProviderOverloaded, "provider is overloaded, retry later")
		}
		return openAIError(http.StatusBadRequest,
			relaymodel.ErrCodeInvalidRequest, err.Error())
	}
	defer pv.Release()

	meta := buildMeta(c, pv, model, isStream)
	outBody, err := pv.Adaptor.PrepareRequest(body, meta)
	if err != nil {
		return openAIError(http.StatusInternalServerError,
			relaymodel.ErrCodeInternalError, err.Error())
	}

	upstreamURL, err := pv.Adaptor.GetRequestURL(meta)
	if err != nil {
		return openAIError(http.StatusInternalServerError,
			relaymodel.ErrCodeInternalError, err.Error())
	}

	upstreamCtx, cancel := o.upstreamContext(c, isStream)
	defer cancel()

	req, err := http.NewRequestWithContext(upstreamCtx, c.Request.Method,
		upstreamURL, bytes.NewReader(outBody))
	if err != nil {
		return openAIError(http.StatusInternalServerError,
			relaymodel.ErrCodeInternalError, err.Error())
	}
	pv.Adaptor.SetupRequestHeader(req, meta)
	for _, h := range forwardedHeaders {
		if v := c.GetHeader(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	resp, err := o.client.Do(req)
	if err != nil {
		if upstreamCtx.Err() != nil {
			return openAIError(http.StatusGatewayTimeout,
				relaymodel.ErrCodeUpstreamTimeout, "upstream request timed out")
		}
		return openAIError(http.StatusBadGateway,
			relaymodel.ErrCodeUpstreamError, err.Error())
	}

	if resp.StatusCode >= http.StatusBadRequest {
		relayErr := RelayErrorHandler(resp)
		logger.Warn("upstream returned error",
			zap.String("provider", pv.Name),
			zap.Int("status", relayErr.StatusCode))
		return relayErr
	}
	forwardedAt := time.Now()

	record := &relaymodel.CostRecord{
		RequestId: c.GetString(ctxkey.RequestId),
		CallerDid: c.GetString(ctxkey.CallerDid),
		Provider:  pv.Name,
		Model:     model,
		Streaming: isStream,
		CreatedAt: time.Now(),
	}

	var relayErr *relaymodel.ErrorWithStatusCode
	if isStream {
		relayErr = o.relayStream(c, resp, pv, record, cancel)
	} else {
		relayErr = o.relayBlocking(c, resp, pv, record)
	}
	if relayErr != nil {
		return relayErr
	}

	o.finalizeCost(resp, pv, record)
	record.ElapsedMs = helper.CalcElapsedTime(start)
	record.StatusCode = resp.StatusCode

	logger.Info("relay complete",
		zap.String("provider", pv.Name),
		zap.String("model", model),
		zap.Bool("stream", isStream),
		zap.Int("prompt_tokens", record.PromptTokens),
		zap.Int("completion_tokens", record.CompletionTokens),
		zap.Float64("cost_usd", record.CostUsd),
		zap.String("cost_source", record.Source),
		zap.Duration("validate", validatedAt.Sub(start)),
		zap.Duration("upstream", forwardedAt.Sub(validatedAt)),
		zap.Duration("total", time.Since(start)))

	monitor.RecordRelay(pv.Name, model, resp.StatusCode, isStream,
		record.CostUsd, time.Since(start))
	o.bill(record)
	return nil
}

// upstreamContext bounds the upstream exchange: a hard deadline for blocking
// requests, cancel-only for streams (the transformer enforces idle timeout).
func (o *Orchestrator) upstreamContext(c *gin.Context, isStream bool) (context.Context, context.CancelFunc) {
	if isStream {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(),
		time.Duration(config.RelayTimeout)*time.Second)
}

func (o *Orchestrator) relayBlocking(c *gin.Context, resp *http.Response,
	pv *provider.Provider, record *relaymodel.CostRecord) *relaymodel.ErrorWithStatusCode {

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return openAIError(http.StatusBadGateway,
			relaymodel.ErrCodeUpstreamError, "failed to read upstream response")
	}

	if usage, uerr := pv.Adaptor.FromResponseBody(respBody); uerr == nil {
		record.PromptTokens = usage.PromptTokens
		record.CompletionTokens = usage.CompletionTokens
		record.TotalTokens = usage.TotalTokens
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, respBody)
	return nil
}

func (o *Orchestrator) relayStream(c *gin.Context, resp *http.Response,
	pv *provider.Provider, record *relaymodel.CostRecord,
	cancelUpstream context.CancelFunc) *relaymodel.ErrorWithStatusCode {

	common.SetEventStreamHeaders(c)
	c.Status(resp.StatusCode)

	extractor := pv.Adaptor.NewStreamExtractor()
	transformer := streaming.New(c, extractor,
		time.Duration(config.IdleTimeout)*time.Second, cancelUpstream)
	monitor.ActiveStreamsInc(pv.Name)
	defer monitor.ActiveStreamsDec(pv.Name)

	usage, err := transformer.Run(resp.Body)
	_ = resp.Body.Close()

	if usage != nil {
		record.PromptTokens = usage.PromptTokens
		record.CompletionTokens = usage.CompletionTokens
		record.TotalTokens = usage.TotalTokens
	} else {
		// no usage frame arrived; reconstruct an estimate
		body, _ := common.GetRequestBody(c)
		record.PromptTokens = estimatePromptTokens(body, record.Model)
		record.CompletionTokens = streaming.EstimateCompletionTokens(
			transformer.CapturedFrames(), record.Model)
		record.TotalTokens = record.PromptTokens + record.CompletionTokens
		record.Estimated = true
	}

	if err != nil {
		// bytes already went out; the error event is on the wire, log only
		gmw.GetLogger(c).Warn("stream ended with error", zap.Error(err))
	}
	return nil
}

// finalizeCost resolves the USD cost: provider-attested when available,
// otherwise registry pricing. The global multiplier applies last either way.
func (o *Orchestrator) finalizeCost(resp *http.Response,
	pv *provider.Provider, record *relaymodel.CostRecord) {

	if cost, ok := pv.Adaptor.NativeUsdCost(resp); ok {
		record.CostUsd = o.Pricing.ScaleNative(cost)
		record.Source = relaymodel.CostSourceProvider
		return
	}
	record.Source = relaymodel.CostSourceGatewayPricing
	if cost, ok := o.Pricing.Cost(pv.Name, record.Model,
		record.PromptTokens, record.CompletionTokens); ok {
		record.CostUsd = cost
	}
}

// bill delivers the record to the billing hook exactly once, off the request
// goroutine so hook latency never delays the response.
func (o *Orchestrator) bill(record *relaymodel.CostRecord) {
	if o.Billing == nil {
		return
	}
	graceful.GoCritical(context.Background(), "billing", func(ctx context.Context) {
		billCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_ = o.Billing.Bill(billCtx, record)
	})
}
