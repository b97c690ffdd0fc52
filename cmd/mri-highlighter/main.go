package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/menta2k/mri-highlighter/internal/config"
	"github.com/menta2k/mri-highlighter/internal/utils"
	"github.com/menta2k/mri-highlighter/pkg/client"
	"github.com/menta2k/mri-highlighter/pkg/detection"
	"github.com/menta2k/mri-highlighter/pkg/processing"
	"github.com/menta2k/mri-highlighter/pkg/response"
	"github.com/menta2k/mri-highlighter/pkg/types"
)

func main() {
	var in, prompt, promptFile, configPath, responsePath, saveConfig string
	var backend, url, model, token string
	var mode, extract, boxes string
	var outDir, ext string
	var quality int
	var lossless bool
	var sendFmt string
	var sendSize int

	flag.StringVar(&in, "in", "", "input MRI image path or URL (png/jpg/webp)")
	flag.StringVar(&prompt, "prompt", "", "prompt sent with the image (default: tumor localization prompt)")
	flag.StringVar(&promptFile, "prompt-file", "", "read the prompt from a file")
	flag.StringVar(&configPath, "config", "", "config file (.json or .yaml, default ~/.config/mri-highlighter/config.yaml if present)")
	flag.StringVar(&saveConfig, "save-config", "", "write the effective configuration (.json or .yaml) and exit")
	flag.StringVar(&responsePath, "response", "", "process a saved model response (JSON or text) instead of calling a model")

	flag.StringVar(&backend, "backend", "", "inference backend: huggingface|ollama|llamacpp")
	flag.StringVar(&url, "url", "", "model endpoint or server URL")
	flag.StringVar(&model, "model", "", "model name (ollama/llamacpp)")
	flag.StringVar(&token, "token", "", "API token for huggingface (default: $HF_TOKEN)")

	flag.StringVar(&mode, "mode", "", "render mode: highlight|mask")
	flag.StringVar(&extract, "extract", "", "coordinate extraction: points|span")
	flag.StringVar(&boxes, "boxes", "", "box building: first-pair|paired")

	flag.StringVar(&outDir, "out", "", "output directory")
	flag.StringVar(&ext, "ext", "", "output format: png|jpg|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP output lossless mode")

	flag.StringVar(&sendFmt, "sendfmt", "", "format sent to the model: png|jpg")
	flag.IntVar(&sendSize, "sendsize", -1, "max long side sent to the model (px), 0=original")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Flags override the config file
	overrideString(&cfg.Inference.Backend, backend)
	overrideString(&cfg.Inference.URL, url)
	overrideString(&cfg.Inference.Model, model)
	overrideString(&cfg.Inference.Token, token)
	overrideString(&cfg.Inference.SendFormat, sendFmt)
	overrideString(&cfg.Pipeline.Mode, mode)
	overrideString(&cfg.Pipeline.Extract, extract)
	overrideString(&cfg.Pipeline.Boxes, boxes)
	overrideString(&cfg.Output.Dir, outDir)
	overrideString(&cfg.Output.Format, ext)
	if quality > 0 {
		cfg.Output.Quality = quality
	}
	if lossless {
		cfg.Output.Lossless = true
	}
	if sendSize >= 0 {
		cfg.Inference.SendMaxDim = sendSize
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	if saveConfig != "" {
		saved := *cfg
		// Only a token given on the command line is written
		saved.Inference.Token = token
		if err := saved.SaveToFile(saveConfig); err != nil {
			logger.Fatal("failed to save config", zap.Error(err))
		}
		logger.Info("wrote config", zap.String("path", saveConfig))
		return
	}

	if in == "" {
		logger.Fatal(fmt.Sprintf("usage: %s -in scan.png [-backend huggingface|ollama|llamacpp] [-url URL] [-mode highlight|mask] [-extract points|span] [-out outdir] [-response saved.json] [-save-config config.yaml]", filepath.Base(os.Args[0])))
	}

	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			logger.Fatal("failed to read prompt file", zap.Error(err))
		}
		prompt = string(data)
	}
	if prompt == "" {
		prompt = cfg.Pipeline.Prompt
	}

	opts, err := cfg.DetectionOptions()
	if err != nil {
		logger.Fatal("invalid pipeline options", zap.Error(err))
	}

	if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
		logger.Fatal("failed to create output directory", zap.Error(err))
	}

	processor := processing.NewProcessorWithMinSize(cfg.Server.MinImageSize)
	img, err := processor.LoadImageSmart(in)
	if err != nil {
		logger.Fatal("failed to load image", zap.String("in", in), zap.Error(err))
	}
	if err := processor.ValidateImage(img); err != nil {
		logger.Fatal("image validation failed", zap.Error(err))
	}

	var result detection.Result
	if responsePath != "" {
		data, err := os.ReadFile(responsePath)
		if err != nil {
			logger.Fatal("failed to read response", zap.Error(err))
		}
		detector := detection.NewDetectorWithOptions(nil, opts)
		result, err = detector.Process(loadPayload(data, cfg.Inference.TextField), img)
		report(logger, result, err)
	} else {
		var inferer client.Inferer
		inferer, err = cfg.NewInferer()
		if err != nil {
			logger.Fatal("failed to create inference client", zap.Error(err))
		}
		detector := detection.NewDetectorWithOptions(inferer, opts)
		logger.Info("running model", zap.String("backend", cfg.Inference.Backend), zap.String("in", in))
		result, err = detector.Detect(context.Background(), img, prompt)
		report(logger, result, err)
	}

	fmt.Println("Model Response:")
	fmt.Println(result.Text)

	format := strings.ToLower(cfg.Output.Format)
	outPath := utils.GenerateOutputFilename(in, cfg.Output.Dir, cfg.Output.Suffix, format)
	switch {
	case result.Annotated != nil:
		if err := processor.SaveImage(result.Annotated, outPath, format, cfg.Output.Quality, cfg.Output.Lossless); err != nil {
			logger.Fatal("save failed", zap.String("path", outPath), zap.Error(err))
		}
		logger.Info("wrote annotated image", zap.String("path", outPath))
	case result.Mask != nil:
		outPath = utils.GenerateOutputFilename(in, cfg.Output.Dir, "_mask", "png")
		if err := processor.SaveImage(result.Mask, outPath, "png", cfg.Output.Quality, true); err != nil {
			logger.Fatal("save failed", zap.String("path", outPath), zap.Error(err))
		}
		logger.Info("wrote mask", zap.String("path", outPath))
	}

	// Save what the pipeline saw and built
	jsonPath := filepath.Join(cfg.Output.Dir, "model_output.json")
	if err := writeModelOutput(jsonPath, result); err != nil {
		logger.Error("failed to write model output", zap.String("path", jsonPath), zap.Error(err))
	}
}

func writeModelOutput(path string, result detection.Result) error {
	js, err := json.MarshalIndent(struct {
		Text   string              `json:"text"`
		Points []types.Point       `json:"points"`
		Boxes  []types.BoundingBox `json:"boxes"`
	}{result.Text, result.Points, result.Boxes}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model output: %w", err)
	}
	return os.WriteFile(path, js, 0o644)
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// loadPayload treats JSON files as structured responses and anything else as raw text
func loadPayload(data []byte, textField string) types.Payload {
	if p := response.DecodeWithField(data, textField); p.Kind != types.PayloadUnrecognized {
		return p
	}
	return response.String(string(data))
}

// report logs the pipeline outcome. Model service failures are fatal so
// scripts see a non-zero exit; parsing outcomes are not.
func report(logger *zap.Logger, result detection.Result, err error) {
	var upstream *types.UpstreamError
	switch {
	case errors.As(err, &upstream):
		logger.Fatal("model service failed", zap.Int("status", upstream.StatusCode), zap.Error(err))
	case err != nil:
		logger.Warn("no annotation produced", zap.Error(err))
	default:
		logger.Info("annotation produced",
			zap.Int("points", len(result.Points)),
			zap.Stringers("boxes", result.Boxes))
	}
}
