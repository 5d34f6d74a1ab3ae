package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

// HTTPOptions configures an HTTPAdapter for one capability endpoint.
type HTTPOptions struct {
	Endpoint       string
	Model          string
	APIKey         string
	Name           string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// HTTPAdapter calls a generative capability endpoint over JSON. Both phases use
// the same endpoint; the preview phase requests a cheap draft rendition.
type HTTPAdapter struct {
	endpoint   string
	model      string
	apiKey     string
	name       string
	httpClient *http.Client
	logger     *infra.Logger
	timeout    time.Duration
}

// NewHTTPAdapter builds an adapter for the given endpoint and model.
func NewHTTPAdapter(opts HTTPOptions) (*HTTPAdapter, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("provider: endpoint is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	name := opts.Name
	if name == "" {
		name = opts.Model
	}
	return &HTTPAdapter{
		endpoint:   opts.Endpoint,
		model:      opts.Model,
		apiKey:     opts.APIKey,
		name:       name,
		httpClient: client,
		logger:     opts.Logger,
		timeout:    timeout,
	}, nil
}

func (a *HTTPAdapter) Name() string { return a.name }

type generationRequest struct {
	Model   string          `json:"model"`
	JobID   string          `json:"job_id"`
	Phase   string          `json:"phase"`
	Prompt  string          `json:"prompt,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Outputs int             `json:"outputs,omitempty"`
}

type generationResponse struct {
	Outputs []struct {
		URL         string `json:"url,omitempty"`
		Data        string `json:"data,omitempty"`
		ContentType string `json:"content_type,omitempty"`
		SizeBytes   int64  `json:"size_bytes,omitempty"`
	} `json:"outputs"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// GeneratePreview requests a single draft-quality artifact.
func (a *HTTPAdapter) GeneratePreview(ctx context.Context, req GenerateRequest) (*Artifact, error) {
	if !req.Module.HasPreview() {
		return nil, ErrNoPreview
	}
	artifacts, err := a.generate(ctx, req, "preview", 1)
	if err != nil {
		return nil, err
	}
	return &artifacts[0], nil
}

// GenerateFinal requests the full-quality artifacts.
func (a *HTTPAdapter) GenerateFinal(ctx context.Context, req GenerateRequest) ([]Artifact, error) {
	outputs := req.Params.Quantity
	if outputs <= 0 {
		outputs = 1
	}
	return a.generate(ctx, req, "final", outputs)
}

func (a *HTTPAdapter) generate(ctx context.Context, req GenerateRequest, phase string, outputs int) ([]Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(generationRequest{
		Model:   a.model,
		JobID:   req.JobID,
		Phase:   phase,
		Prompt:  req.Params.Prompt,
		Params:  req.Raw,
		Outputs: outputs,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrProviderFailure, a.name, phase, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrProviderFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s %s: status %d", domain.ErrProviderFailure, a.name, phase, resp.StatusCode)
	}

	var decoded generationResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrProviderFailure, err)
	}
	if decoded.Code != "" {
		return nil, fmt.Errorf("%w: %s: %s %s", domain.ErrProviderFailure, a.name, decoded.Code, decoded.Message)
	}
	if len(decoded.Outputs) == 0 {
		return nil, fmt.Errorf("%w: %s returned no outputs", domain.ErrProviderFailure, a.name)
	}

	if a.logger != nil {
		a.logger.Debug().Str("provider", a.name).Str("phase", phase).Int("outputs", len(decoded.Outputs)).Msg("generation response")
	}

	artifacts := make([]Artifact, 0, len(decoded.Outputs))
	for _, out := range decoded.Outputs {
		artifact := Artifact{
			URL:         out.URL,
			ContentType: out.ContentType,
			SizeBytes:   out.SizeBytes,
		}
		if out.Data != "" {
			data, err := base64.StdEncoding.DecodeString(out.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: decode artifact data: %v", domain.ErrProviderFailure, err)
			}
			artifact.Data = data
			if artifact.SizeBytes == 0 {
				artifact.SizeBytes = int64(len(data))
			}
		}
		if artifact.URL == "" && len(artifact.Data) == 0 {
			return nil, fmt.Errorf("%w: %s returned an empty output", domain.ErrProviderFailure, a.name)
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}
