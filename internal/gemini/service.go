package gemini

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/tidwall/sjson"

	"github.com/nghyane/gemini-wire/internal/config"
	"github.com/nghyane/gemini-wire/internal/json"
	log "github.com/nghyane/gemini-wire/internal/logging"
	"github.com/nghyane/gemini-wire/internal/wire"
)

const (
	actionGenerate    = "generateContent"
	actionStream      = "streamGenerateContent"
	actionCountTokens = "countTokens"

	// uploadResourceKey is the envelope key wrapping the created file in the
	// finalize response.
	uploadResourceKey = "file"
)

// Service is the single canonical client for the Gemini API. It fills
// defaults, builds versioned endpoints, and maps upstream refusals
// (safety blocks, empty candidates) onto the error taxonomy.
type Service struct {
	client  *wire.Client
	cfg     *config.Config
	version string
}

// NewService builds a Service from configuration. Extra wire options are
// applied after the config-derived ones and may override them.
func NewService(cfg *config.Config, opts ...wire.Option) *Service {
	base := []wire.Option{
		wire.WithBaseURL(cfg.BaseURL),
		wire.WithAPIKey(cfg.APIKey),
		wire.WithTimeout(cfg.RequestTimeout()),
	}
	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			base = append(base, wire.WithHTTPClient(&http.Client{
				Transport: wire.ProxyTransport(proxyURL),
			}))
		} else {
			log.WithError(err).Warn("invalid proxy-url, using shared transport")
		}
	}
	return &Service{
		client:  wire.NewClient(append(base, opts...)...),
		cfg:     cfg,
		version: cfg.APIVersion,
	}
}

// Client exposes the underlying transport client.
func (s *Service) Client() *wire.Client { return s.client }

// GenerateContent performs one unary generation call.
func (s *Service) GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	payload, cerr := s.preparePayload(model, req)
	if cerr != nil {
		return nil, cerr
	}
	path := s.modelPath(model, actionGenerate, "")
	resp, cerr := wire.Post[json.RawMessage, GenerateContentResponse](ctx, s.client, path, payload)
	if cerr != nil {
		return nil, cerr
	}
	if cerr := checkGenerated(&resp); cerr != nil {
		return nil, cerr
	}
	return &resp, nil
}

// StreamGenerateContent performs a streaming generation call. The caller
// pulls elements from the returned stream and must Close it.
func (s *Service) StreamGenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*wire.Stream[GenerateContentResponse], error) {
	payload, cerr := s.preparePayload(model, req)
	if cerr != nil {
		return nil, cerr
	}
	path := s.modelPath(model, actionStream, "")
	stream, cerr := wire.PostStream[json.RawMessage, GenerateContentResponse](ctx, s.client, path, payload)
	if cerr != nil {
		return nil, cerr
	}
	return stream, nil
}

// CountTokens asks the server for the prompt's token count.
func (s *Service) CountTokens(ctx context.Context, model string, contents []Content) (*CountTokensResponse, error) {
	path := s.modelPath(model, actionCountTokens, "")
	resp, cerr := wire.Post[*CountTokensRequest, CountTokensResponse](ctx, s.client, path, &CountTokensRequest{Contents: contents})
	if cerr != nil {
		return nil, cerr
	}
	return &resp, nil
}

// UploadFile transfers content through the resumable upload protocol and
// returns the created file resource. Requires the v1beta API surface.
func (s *Service) UploadFile(ctx context.Context, displayName string, content []byte, mimeType string) (*File, error) {
	if cerr := s.requireVersion("v1beta", "file upload"); cerr != nil {
		return nil, cerr
	}
	path := "/upload/" + s.version + "/files"
	meta := uploadMetadata{File: uploadFileInfo{DisplayName: displayName}}
	file, cerr := wire.Upload[File](ctx, s.client, path, meta, content, mimeType, s.cfg.UploadChunkSize, uploadResourceKey)
	if cerr != nil {
		return nil, cerr
	}
	return &file, nil
}

// requireVersion gates operations not present on the configured API
// surface. The rejection is a typed configuration error, decided at call
// time rather than by client construction.
func (s *Service) requireVersion(version, op string) *wire.Error {
	if s.version == version {
		return nil
	}
	return wire.NewError(wire.KindInvalidRequest,
		op+" requires API version "+version+", configured version is "+s.version, nil)
}

// preparePayload encodes the request and strips fields the target model or
// API version does not accept.
func (s *Service) preparePayload(model string, req *GenerateContentRequest) (json.RawMessage, *wire.Error) {
	body, cerr := wire.Encode(req)
	if cerr != nil {
		return nil, cerr
	}
	if s.version == "v1" {
		// systemInstruction and tools are v1beta surface.
		body, _ = sjson.DeleteBytes(body, "systemInstruction")
		body, _ = sjson.DeleteBytes(body, "tools")
	}
	if !modelSupportsThinking(model) {
		body, _ = sjson.DeleteBytes(body, "generationConfig.thinkingConfig")
	}
	return body, nil
}

// checkGenerated maps refusals inside a 2xx body to content errors.
func checkGenerated(resp *GenerateContentResponse) *wire.Error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return wire.NewError(wire.KindSafetyThresholdExceeded,
			"prompt blocked: "+resp.PromptFeedback.BlockReason, nil)
	}
	if len(resp.Candidates) == 0 {
		return wire.NewError(wire.KindContentGenerationFailed,
			"response contained no candidates", nil)
	}
	if reason := resp.Candidates[0].FinishReason; reason == "SAFETY" || reason == "PROHIBITED_CONTENT" {
		return wire.NewError(wire.KindSafetyThresholdExceeded,
			"generation stopped: "+reason, nil)
	}
	return nil
}

// modelSupportsThinking reports whether thinkingConfig is accepted by the
// model family.
func modelSupportsThinking(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "2.5") || strings.Contains(m, "gemini-3")
}

var urlBuilderPool = sync.Pool{
	New: func() any {
		return &strings.Builder{}
	},
}

// modelPath builds "/{version}/models/{model}:{action}[?query]".
func (s *Service) modelPath(model, action, query string) string {
	sb := urlBuilderPool.Get().(*strings.Builder)
	defer func() {
		sb.Reset()
		urlBuilderPool.Put(sb)
	}()
	sb.Grow(64)
	sb.WriteString("/")
	sb.WriteString(s.version)
	sb.WriteString("/models/")
	sb.WriteString(model)
	sb.WriteString(":")
	sb.WriteString(action)
	if query != "" {
		sb.WriteString("?")
		sb.WriteString(query)
	}
	return sb.String()
}
