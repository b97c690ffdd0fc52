package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/menta2k/mri-highlighter/pkg/annotate"
	"github.com/menta2k/mri-highlighter/pkg/client"
	"github.com/menta2k/mri-highlighter/pkg/detection"
	"github.com/menta2k/mri-highlighter/pkg/geometry"
	"github.com/menta2k/mri-highlighter/pkg/huggingface"
	"github.com/menta2k/mri-highlighter/pkg/llamacpp"
	"github.com/menta2k/mri-highlighter/pkg/ollama"
	"github.com/menta2k/mri-highlighter/pkg/types"
)

// Default server URLs per backend
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultLlamacppURL = "http://localhost:8080"
)

// ParseColor parses "#rrggbb" or "rrggbb" into an opaque color
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q (want #rrggbb)", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// DetectionOptions converts the pipeline section into detector options
func (c *Config) DetectionOptions() (detection.Options, error) {
	opts := detection.DefaultOptions()

	mode, err := types.ParseMode(c.Pipeline.Mode)
	if err != nil {
		return opts, err
	}
	extract, err := detection.ParseExtractMode(c.Pipeline.Extract)
	if err != nil {
		return opts, err
	}
	boxes, err := geometry.ParseBoxMode(c.Pipeline.Boxes)
	if err != nil {
		return opts, err
	}
	col, err := ParseColor(c.Pipeline.Color)
	if err != nil {
		return opts, err
	}

	opts.Mode = mode
	opts.Extract = extract
	opts.Boxes = boxes
	opts.Annotate = annotate.Options{
		Color:     col,
		FillAlpha: uint8(c.Pipeline.FillAlpha),
		Stroke:    c.Pipeline.Stroke,
	}
	opts.SendFormat = c.Inference.SendFormat
	opts.SendMaxDim = c.Inference.SendMaxDim
	opts.SendQuality = c.Inference.SendQuality
	return opts, nil
}

// NewInferer creates the configured inference backend
func (c *Config) NewInferer() (client.Inferer, error) {
	switch c.Inference.Backend {
	case "huggingface":
		hf, err := huggingface.NewClient(c.Inference.URL, c.Inference.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create Hugging Face client: %w", err)
		}
		hf.SetTextField(c.Inference.TextField)
		return hf, nil
	case "ollama":
		url := c.Inference.URL
		if url == "" {
			url = DefaultOllamaURL
		}
		oc, err := ollama.NewClient(url, c.Inference.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return oc, nil
	case "llamacpp":
		url := c.Inference.URL
		if url == "" {
			url = DefaultLlamacppURL
		}
		lc, err := llamacpp.NewClient(url, c.Inference.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return lc, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use huggingface, ollama or llamacpp)", c.Inference.Backend)
	}
}
