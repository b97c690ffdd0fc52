package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/mri-highlighter/pkg/detection"
	"github.com/menta2k/mri-highlighter/pkg/geometry"
	"github.com/menta2k/mri-highlighter/pkg/huggingface"
	"github.com/menta2k/mri-highlighter/pkg/llamacpp"
	"github.com/menta2k/mri-highlighter/pkg/ollama"
	"github.com/menta2k/mri-highlighter/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
inference:
  backend: ollama
  model: llava
pipeline:
  mode: mask
  extract: span
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Inference.Backend != "ollama" || cfg.Inference.Model != "llava" {
		t.Errorf("Unexpected inference section %+v", cfg.Inference)
	}
	if cfg.Pipeline.Mode != "mask" || cfg.Pipeline.Extract != "span" {
		t.Errorf("Unexpected pipeline section %+v", cfg.Pipeline)
	}
	// Unset keys keep their defaults
	if cfg.Pipeline.Color != "#ff0000" || cfg.Server.Addr != ":8501" {
		t.Errorf("Defaults were not preserved: %+v", cfg)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"pipeline":{"boxes":"paired","stroke":5}}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Pipeline.Boxes != "paired" || cfg.Pipeline.Stroke != 5 {
		t.Errorf("Unexpected pipeline section %+v", cfg.Pipeline)
	}
	if cfg.Inference.Backend != "huggingface" {
		t.Errorf("Expected default backend, got %s", cfg.Inference.Backend)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0600)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := Default()
	cfg.Inference.Backend = "llamacpp"
	cfg.Output.Format = "webp"

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("HF_TOKEN", "hf_env")
	t.Setenv("MRI_ADDR", ":9000")

	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Inference.Token != "hf_env" || cfg.Server.Addr != ":9000" {
		t.Errorf("Environment not applied: %+v", cfg)
	}

	cfg = Default()
	cfg.Inference.Token = "hf_file"
	cfg.ApplyEnv()
	if cfg.Inference.Token != "hf_file" {
		t.Errorf("Token from file should win, got %s", cfg.Inference.Token)
	}
}

func TestLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("HF_TOKEN", "hf_env")

	// No file anywhere: defaults plus environment
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Inference.Backend != "huggingface" || cfg.Inference.Token != "hf_env" {
		t.Errorf("Unexpected config %+v", cfg.Inference)
	}

	// A file at the default path is picked up
	defaultCfg := Default()
	defaultCfg.Inference.Backend = "ollama"
	if err := defaultCfg.SaveToFile(GetConfigPath()); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Inference.Backend != "ollama" {
		t.Errorf("Expected config from %s, got backend %s", GetConfigPath(), cfg.Inference.Backend)
	}

	// An explicit path wins over the default one
	explicit := filepath.Join(t.TempDir(), "explicit.json")
	os.WriteFile(explicit, []byte(`{"inference":{"backend":"llamacpp"}}`), 0600)
	cfg, err = Load(explicit)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Inference.Backend != "llamacpp" {
		t.Errorf("Expected explicit config, got backend %s", cfg.Inference.Backend)
	}

	if _, err := Load(filepath.Join(home, "missing.yaml")); err == nil {
		t.Error("Expected error for a missing explicit file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"backend", func(c *Config) { c.Inference.Backend = "openai" }},
		{"send quality", func(c *Config) { c.Inference.SendQuality = 0 }},
		{"send max dim", func(c *Config) { c.Inference.SendMaxDim = -1 }},
		{"mode", func(c *Config) { c.Pipeline.Mode = "outline" }},
		{"extract", func(c *Config) { c.Pipeline.Extract = "all" }},
		{"boxes", func(c *Config) { c.Pipeline.Boxes = "every" }},
		{"color", func(c *Config) { c.Pipeline.Color = "red" }},
		{"fill alpha", func(c *Config) { c.Pipeline.FillAlpha = 256 }},
		{"stroke", func(c *Config) { c.Pipeline.Stroke = -1 }},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"output quality", func(c *Config) { c.Output.Quality = 101 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#ff0000", color.NRGBA{255, 0, 0, 255}, false},
		{"00ff80", color.NRGBA{0, 255, 128, 255}, false},
		{" #0A0B0C ", color.NRGBA{10, 11, 12, 255}, false},
		{"#fff", color.NRGBA{}, true},
		{"#gggggg", color.NRGBA{}, true},
	}

	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDetectionOptions(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Mode = "mask"
	cfg.Pipeline.Extract = "span"
	cfg.Pipeline.Boxes = "paired"
	cfg.Pipeline.Color = "#00ff00"
	cfg.Pipeline.FillAlpha = 60
	cfg.Inference.SendMaxDim = 512

	opts, err := cfg.DetectionOptions()
	if err != nil {
		t.Fatalf("DetectionOptions failed: %v", err)
	}

	if opts.Mode != types.ModeMask || opts.Extract != detection.ExtractSpan || opts.Boxes != geometry.Paired {
		t.Errorf("Unexpected modes %+v", opts)
	}
	if opts.Annotate.Color != (color.NRGBA{0, 255, 0, 255}) || opts.Annotate.FillAlpha != 60 {
		t.Errorf("Unexpected annotate options %+v", opts.Annotate)
	}
	if opts.SendMaxDim != 512 {
		t.Errorf("Expected send max dim 512, got %d", opts.SendMaxDim)
	}

	cfg.Pipeline.Mode = "outline"
	if _, err := cfg.DetectionOptions(); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestNewInferer(t *testing.T) {
	tests := []struct {
		backend string
		check   func(any) bool
	}{
		{"huggingface", func(v any) bool { _, ok := v.(*huggingface.Client); return ok }},
		{"ollama", func(v any) bool { _, ok := v.(*ollama.Client); return ok }},
		{"llamacpp", func(v any) bool { _, ok := v.(*llamacpp.Client); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := Default()
			cfg.Inference.Backend = tt.backend
			inf, err := cfg.NewInferer()
			if err != nil {
				t.Fatalf("NewInferer failed: %v", err)
			}
			if !tt.check(inf) {
				t.Errorf("Unexpected client type %T", inf)
			}
		})
	}

	cfg := Default()
	cfg.Inference.Backend = "unknown"
	if _, err := cfg.NewInferer(); err == nil {
		t.Error("Expected error for unknown backend")
	}

	cfg = Default()
	cfg.Inference.URL = "ftp://models.local"
	if _, err := cfg.NewInferer(); err == nil {
		t.Error("Expected error for non-http Hugging Face URL")
	}
}
