package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"server/internal/domain"
)

// Synthetic produces deterministic placeholder artifacts. It stands in for a
// real capability endpoint in development and tests, mirroring the behavior of
// running without provider credentials.
type Synthetic struct {
	Module domain.Module
}

func NewSynthetic(module domain.Module) *Synthetic {
	return &Synthetic{Module: module}
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) GeneratePreview(_ context.Context, req GenerateRequest) (*Artifact, error) {
	if !req.Module.HasPreview() {
		return nil, ErrNoPreview
	}
	artifact := s.artifact(req, "preview", 0)
	return &artifact, nil
}

func (s *Synthetic) GenerateFinal(_ context.Context, req GenerateRequest) ([]Artifact, error) {
	outputs := req.Params.Quantity
	if outputs <= 0 {
		outputs = 1
	}
	artifacts := make([]Artifact, 0, outputs)
	for i := 0; i < outputs; i++ {
		artifacts = append(artifacts, s.artifact(req, "final", i))
	}
	return artifacts, nil
}

// artifact derives stable bytes from the job id so retries reproduce the same
// output.
func (s *Synthetic) artifact(req GenerateRequest, phase string, index int) Artifact {
	seed := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%s/%d", req.JobID, req.Module, phase, index)))
	body := []byte("synthetic artifact " + hex.EncodeToString(seed[:8]))
	return Artifact{
		Data:        body,
		ContentType: s.contentType(),
		SizeBytes:   int64(len(body)),
	}
}

func (s *Synthetic) contentType() string {
	switch s.Module {
	case domain.ModuleImageGenerate, domain.ModuleImageEnhance:
		return "image/png"
	case domain.ModuleSpeechTTS:
		return "audio/mpeg"
	case domain.ModuleVideoGenerate, domain.ModuleVideoAnimate:
		return "video/mp4"
	}
	return "text/plain"
}
