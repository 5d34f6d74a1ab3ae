package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Module identifies a generation capability.
type Module string

const (
	ModuleChat          Module = "chat"
	ModuleImageGenerate Module = "image.generate"
	ModuleImageEnhance  Module = "image.enhance"
	ModuleSpeechTTS     Module = "speech.tts"
	ModuleVideoGenerate Module = "video.generate"
	ModuleVideoAnimate  Module = "video.animate"
)

// Billing rates in credits. Duration-based modules round up to a started unit.
const (
	chatCost            = 1
	imageCostPerUnit    = 5
	speechCostPerUnit   = 2
	speechUnitSeconds   = 15
	videoCostPerSecond  = 20
	videoMinimumSeconds = 5

	MaxQuantity = 8
)

var knownModules = map[Module]bool{
	ModuleChat:          true,
	ModuleImageGenerate: true,
	ModuleImageEnhance:  true,
	ModuleSpeechTTS:     true,
	ModuleVideoGenerate: true,
	ModuleVideoAnimate:  true,
}

// KnownModule reports whether m is a supported capability.
func KnownModule(m Module) bool {
	return knownModules[m]
}

// HasPreview reports whether the module produces a preview artifact before the
// final one. Chat and speech responses carry no meaningful preview phase.
func (m Module) HasPreview() bool {
	switch m {
	case ModuleImageGenerate, ModuleImageEnhance, ModuleVideoGenerate, ModuleVideoAnimate:
		return true
	}
	return false
}

// JobParams is the shape-validated portion of a job's params payload. Anything
// beyond these fields is opaque to the pipeline and passed through to providers.
type JobParams struct {
	Prompt          string  `json:"prompt"`
	Quantity        int     `json:"quantity"`
	AspectRatio     string  `json:"aspect_ratio"`
	DurationSeconds float64 `json:"duration_seconds"`
	SourceURL       string  `json:"source_url"`
	Voice           string  `json:"voice"`
}

// ParseParams validates the shape of raw params for the given module.
// Semantics of provider-specific fields are not interpreted here.
func ParseParams(m Module, raw json.RawMessage) (JobParams, error) {
	var p JobParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return JobParams{}, fmt.Errorf("%w: malformed params", ErrValidation)
		}
	}
	if p.Quantity < 0 {
		return JobParams{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if p.Quantity == 0 {
		p.Quantity = 1
	}
	if p.Quantity > MaxQuantity {
		p.Quantity = MaxQuantity
	}
	if p.DurationSeconds < 0 {
		return JobParams{}, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	switch m {
	case ModuleChat, ModuleImageGenerate, ModuleVideoGenerate:
		if strings.TrimSpace(p.Prompt) == "" {
			return JobParams{}, fmt.Errorf("%w: prompt is required", ErrValidation)
		}
	case ModuleImageEnhance, ModuleVideoAnimate:
		if strings.TrimSpace(p.SourceURL) == "" {
			return JobParams{}, fmt.Errorf("%w: source_url is required", ErrValidation)
		}
	case ModuleSpeechTTS:
		if strings.TrimSpace(p.Prompt) == "" {
			return JobParams{}, fmt.Errorf("%w: prompt is required", ErrValidation)
		}
		if p.DurationSeconds == 0 {
			return JobParams{}, fmt.Errorf("%w: duration_seconds is required", ErrValidation)
		}
	}
	return p, nil
}

// EstimateCost computes the credit estimate for a job before dispatch. The
// authoritative cost is reported by the worker at completion.
func EstimateCost(m Module, p JobParams) int {
	switch m {
	case ModuleChat:
		return chatCost
	case ModuleImageGenerate, ModuleImageEnhance:
		return imageCostPerUnit * p.Quantity
	case ModuleSpeechTTS:
		units := int(p.DurationSeconds) / speechUnitSeconds
		if float64(units*speechUnitSeconds) < p.DurationSeconds {
			units++
		}
		if units < 1 {
			units = 1
		}
		return speechCostPerUnit * units
	case ModuleVideoGenerate, ModuleVideoAnimate:
		seconds := int(p.DurationSeconds)
		if float64(seconds) < p.DurationSeconds {
			seconds++
		}
		if seconds < videoMinimumSeconds {
			seconds = videoMinimumSeconds
		}
		return videoCostPerSecond * seconds
	}
	return 0
}
