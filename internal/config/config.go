package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Inference InferenceConfig `json:"inference" yaml:"inference"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Output    OutputConfig    `json:"output" yaml:"output"`
}

// InferenceConfig selects and configures the model backend
type InferenceConfig struct {
	Backend     string `json:"backend" yaml:"backend"`
	URL         string `json:"url" yaml:"url"`
	Model       string `json:"model" yaml:"model"`
	Token       string `json:"token,omitempty" yaml:"token,omitempty"`
	TextField   string `json:"text_field" yaml:"text_field"`
	SendFormat  string `json:"send_format" yaml:"send_format"`
	SendMaxDim  int    `json:"send_max_dim" yaml:"send_max_dim"`
	SendQuality int    `json:"send_quality" yaml:"send_quality"`
}

// PipelineConfig controls coordinate extraction and rendering
type PipelineConfig struct {
	Mode      string `json:"mode" yaml:"mode"`
	Extract   string `json:"extract" yaml:"extract"`
	Boxes     string `json:"boxes" yaml:"boxes"`
	Color     string `json:"color" yaml:"color"`
	FillAlpha int    `json:"fill_alpha" yaml:"fill_alpha"`
	Stroke    int    `json:"stroke" yaml:"stroke"`
	Prompt    string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// ServerConfig holds configuration for the upload form server
type ServerConfig struct {
	Addr         string `json:"addr" yaml:"addr"`
	MaxUploadMB  int    `json:"max_upload_mb" yaml:"max_upload_mb"`
	MinImageSize int    `json:"min_image_size" yaml:"min_image_size"`
}

// OutputConfig holds configuration for saved results
type OutputConfig struct {
	Format   string `json:"format" yaml:"format"`
	Quality  int    `json:"quality" yaml:"quality"`
	Lossless bool   `json:"lossless" yaml:"lossless"`
	Dir      string `json:"dir" yaml:"dir"`
	Suffix   string `json:"suffix" yaml:"suffix"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Inference: InferenceConfig{
			Backend:     "huggingface",
			TextField:   "generated_text",
			SendFormat:  "png",
			SendMaxDim:  0,
			SendQuality: 90,
		},
		Pipeline: PipelineConfig{
			Mode:      "highlight",
			Extract:   "points",
			Boxes:     "first-pair",
			Color:     "#ff0000",
			FillAlpha: 100,
			Stroke:    3,
		},
		Server: ServerConfig{
			Addr:         ":8501",
			MaxUploadMB:  20,
			MinImageSize: 16,
		},
		Output: OutputConfig{
			Format:  "png",
			Quality: 92,
			Dir:     "./out",
			Suffix:  "_annotated",
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename, or the file at GetConfigPath when filename is empty
// and that file exists, and applies the environment on top
func Load(filename string) (*Config, error) {
	if filename == "" {
		if _, err := os.Stat(GetConfigPath()); err == nil {
			filename = GetConfigPath()
		}
	}

	config := Default()
	if filename != "" {
		var err error
		if config, err = LoadFromFile(filename); err != nil {
			return nil, err
		}
	}
	config.ApplyEnv()
	return config, nil
}

// ApplyEnv overrides secrets and addresses from the environment
func (c *Config) ApplyEnv() {
	if token := os.Getenv("HF_TOKEN"); token != "" && c.Inference.Token == "" {
		c.Inference.Token = token
	}
	if addr := os.Getenv("MRI_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// SaveToFile saves configuration to a JSON or YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Inference.Backend {
	case "huggingface", "ollama", "llamacpp":
	default:
		return fmt.Errorf("inference.backend must be huggingface, ollama or llamacpp")
	}

	if c.Inference.SendQuality < 1 || c.Inference.SendQuality > 100 {
		return fmt.Errorf("inference.send_quality must be between 1 and 100")
	}

	if c.Inference.SendMaxDim < 0 {
		return fmt.Errorf("inference.send_max_dim cannot be negative")
	}

	if c.Pipeline.Mode != "highlight" && c.Pipeline.Mode != "mask" {
		return fmt.Errorf("pipeline.mode must be highlight or mask")
	}

	if c.Pipeline.Extract != "points" && c.Pipeline.Extract != "span" {
		return fmt.Errorf("pipeline.extract must be points or span")
	}

	if c.Pipeline.Boxes != "first-pair" && c.Pipeline.Boxes != "paired" {
		return fmt.Errorf("pipeline.boxes must be first-pair or paired")
	}

	if _, err := ParseColor(c.Pipeline.Color); err != nil {
		return fmt.Errorf("pipeline.color: %w", err)
	}

	if c.Pipeline.FillAlpha < 0 || c.Pipeline.FillAlpha > 255 {
		return fmt.Errorf("pipeline.fill_alpha must be between 0 and 255")
	}

	if c.Pipeline.Stroke < 0 {
		return fmt.Errorf("pipeline.stroke cannot be negative")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "mri-highlighter", "config.yaml")
}
