// Package mrihighlighter marks tumor regions on MRI images from the free-text
// answer of a vision-language model.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//		"os"
//
//		mrihighlighter "github.com/menta2k/mri-highlighter"
//		"github.com/menta2k/mri-highlighter/pkg/huggingface"
//	)
//
//	func main() {
//		hf, err := huggingface.NewClient(huggingface.DefaultURL, os.Getenv("HF_TOKEN"))
//		if err != nil {
//			log.Fatal(err)
//		}
//		h := mrihighlighter.New(hf)
//
//		img, err := h.LoadImage("scan.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := h.Annotate(context.Background(), img, "")
//		fmt.Println(result.Text)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := h.SaveImage(result.Annotated, "scan_annotated.png"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The pipeline has four stages, each usable on its own:
//
// 1. Response normalizer (pkg/response): payload of unknown shape to text
// 2. Coordinate extractor (pkg/coords): "(x, y)" pairs or "(x1, y1) to (x2, y2)" spans
// 3. Geometry builder (pkg/geometry): points to bounding boxes
// 4. Raster annotator (pkg/annotate): translucent highlight or binary mask
//
// Inference backends live in pkg/huggingface, pkg/ollama and pkg/llamacpp.
package mrihighlighter

import (
	"context"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/menta2k/mri-highlighter/pkg/client"
	"github.com/menta2k/mri-highlighter/pkg/detection"
	"github.com/menta2k/mri-highlighter/pkg/processing"
	"github.com/menta2k/mri-highlighter/pkg/types"
)

// Version of the library
const Version = "1.0.0"

// Highlighter couples image I/O with the detection pipeline
type Highlighter struct {
	processor *processing.Processor
	detector  *detection.Detector
}

// New creates a Highlighter in highlight mode around an inference backend
func New(inferer client.Inferer) *Highlighter {
	return NewWithOptions(inferer, detection.DefaultOptions())
}

// NewWithOptions creates a Highlighter with custom pipeline options
func NewWithOptions(inferer client.Inferer, opts detection.Options) *Highlighter {
	return &Highlighter{
		processor: processing.NewProcessor(),
		detector:  detection.NewDetectorWithOptions(inferer, opts),
	}
}

// LoadImage loads an image from a file path or URL
func (h *Highlighter) LoadImage(source string) (image.Image, error) {
	return h.processor.LoadImageSmart(source)
}

// LoadImageFromReader loads an image from an io.Reader
func (h *Highlighter) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	return h.processor.LoadImageFromReader(reader)
}

// SaveImage saves an image, picking the format from the file extension
func (h *Highlighter) SaveImage(img image.Image, path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return h.processor.SaveImage(img, path, format, 92, false)
}

// Annotate asks the model about img and renders the boxes it reports
func (h *Highlighter) Annotate(ctx context.Context, img image.Image, prompt string) (detection.Result, error) {
	return h.detector.Detect(ctx, img, prompt)
}

// Process renders a response that was obtained elsewhere
func (h *Highlighter) Process(payload types.Payload, img image.Image) (detection.Result, error) {
	return h.detector.Process(payload, img)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
