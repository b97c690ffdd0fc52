package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/menta2k/mri-highlighter/pkg/annotate"
	"github.com/menta2k/mri-highlighter/pkg/client"
	"github.com/menta2k/mri-highlighter/pkg/coords"
	"github.com/menta2k/mri-highlighter/pkg/geometry"
	"github.com/menta2k/mri-highlighter/pkg/processing"
	"github.com/menta2k/mri-highlighter/pkg/response"
	"github.com/menta2k/mri-highlighter/pkg/types"
)

// DefaultPrompt asks the model for a tumor location in pixel coordinates
const DefaultPrompt = `You are a medical imaging expert trained to detect brain tumors in MRI scans.

Look at the MRI image and decide whether a tumor is visible.
If it is, describe it briefly and give the bounding box of the tumor region
in pixel coordinates of this image, written exactly as:

(x1, y1) to (x2, y2)

where (x1, y1) is the top-left corner and (x2, y2) the bottom-right corner.
If no tumor is visible, say so and do not write any coordinates.`

// ExtractMode selects how coordinates are read from model text
type ExtractMode string

const (
	// ExtractPoints reads every "(x, y)" pair
	ExtractPoints ExtractMode = "points"
	// ExtractSpan reads the first "(x1, y1) to (x2, y2)" span
	ExtractSpan ExtractMode = "span"
)

// ParseExtractMode validates a user-supplied extraction mode
func ParseExtractMode(s string) (ExtractMode, error) {
	switch ExtractMode(s) {
	case ExtractPoints, ExtractSpan:
		return ExtractMode(s), nil
	case "":
		return ExtractPoints, nil
	}
	return "", fmt.Errorf("unknown extract mode %q (use points or span)", s)
}

// Options configures one pipeline run
type Options struct {
	Mode     types.Mode
	Extract  ExtractMode
	Boxes    geometry.BoxMode
	Annotate annotate.Options

	// Encoding of the image sent to the model
	SendFormat  string
	SendMaxDim  int
	SendQuality int
}

// DefaultOptions returns highlight mode with compatible extraction
func DefaultOptions() Options {
	return Options{
		Mode:        types.ModeHighlight,
		Extract:     ExtractPoints,
		Boxes:       geometry.FirstPair,
		Annotate:    annotate.DefaultOptions(),
		SendFormat:  "png",
		SendQuality: 90,
	}
}

// Result is what the presentation layer displays. Text is set whenever the
// model produced any; Annotated or Mask is set only on success.
type Result struct {
	Text      string
	Points    []types.Point
	Boxes     []types.BoundingBox
	Annotated image.Image
	Mask      *image.Gray
}

// Detector runs the response-to-geometry pipeline around an inference backend
type Detector struct {
	client    client.Inferer
	processor *processing.Processor
	opts      Options
}

// NewDetector creates a detector with default options
func NewDetector(c client.Inferer) *Detector {
	return NewDetectorWithOptions(c, DefaultOptions())
}

// NewDetectorWithOptions creates a detector with custom options
func NewDetectorWithOptions(c client.Inferer, opts Options) *Detector {
	return &Detector{
		client:    c,
		processor: processing.NewProcessor(),
		opts:      opts,
	}
}

// Options returns the detector's options
func (d *Detector) Options() Options {
	return d.opts
}

// Detect sends img and prompt to the model once and processes the reply.
// An empty prompt uses DefaultPrompt.
func (d *Detector) Detect(ctx context.Context, img image.Image, prompt string) (Result, error) {
	if d.client == nil {
		return Result{}, errors.New("no inference client configured")
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	data, err := d.processor.EncodeForModel(img, d.opts.SendFormat, d.opts.SendMaxDim, d.opts.SendQuality)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode image: %w", err)
	}

	payload, err := d.client.Infer(ctx, data, prompt)
	if err != nil {
		var upstream *types.UpstreamError
		if errors.As(err, &upstream) {
			return Result{}, upstream
		}
		return Result{}, &types.UpstreamError{Message: err.Error()}
	}

	scale := processing.ScaleFactor(img, d.opts.SendMaxDim)
	return d.process(payload, img, scale)
}

// Process runs Normalize, Extract, Build and Annotate on a payload that was
// already obtained. Each failure stops the remaining stages.
func (d *Detector) Process(payload types.Payload, img image.Image) (Result, error) {
	return d.process(payload, img, 1)
}

func (d *Detector) process(payload types.Payload, img image.Image, scale float64) (Result, error) {
	var result Result

	text, err := response.Text(payload)
	if err != nil {
		return result, err
	}
	result.Text = text

	var boxes []types.BoundingBox
	switch d.opts.Extract {
	case ExtractSpan:
		// Paired mode keeps every span, first-pair only the first
		if d.opts.Boxes == geometry.Paired {
			boxes = coords.ExtractSpans(text)
		} else if box, ok := coords.ExtractSpan(text); ok {
			boxes = []types.BoundingBox{box}
		}
		if len(boxes) == 0 {
			return result, fmt.Errorf("%w: no \"(x1, y1) to (x2, y2)\" span in response", types.ErrInsufficientPoints)
		}
		result.Points = make([]types.Point, 0, 2*len(boxes))
		for i, box := range boxes {
			result.Points = append(result.Points, types.Point{X: box.X1, Y: box.Y1}, types.Point{X: box.X2, Y: box.Y2})
			if d.opts.Boxes == geometry.Paired {
				boxes[i] = box.Normalized()
			}
		}
	default:
		result.Points = coords.Extract(text)
		boxes, err = geometry.Build(d.opts.Boxes, result.Points)
		if err != nil {
			return result, err
		}
	}

	result.Boxes = scaleBoxes(boxes, scale)

	switch d.opts.Mode {
	case types.ModeMask:
		result.Mask = annotate.BuildMask(img.Bounds().Size(), result.Boxes)
	default:
		result.Annotated = annotate.Highlight(img, result.Boxes, d.opts.Annotate)
	}
	return result, nil
}

func scaleBoxes(boxes []types.BoundingBox, scale float64) []types.BoundingBox {
	if scale == 1 {
		return boxes
	}
	scaled := make([]types.BoundingBox, len(boxes))
	for i, b := range boxes {
		scaled[i] = types.BoundingBox{
			X1: int(math.Round(float64(b.X1) * scale)),
			Y1: int(math.Round(float64(b.Y1) * scale)),
			X2: int(math.Round(float64(b.X2) * scale)),
			Y2: int(math.Round(float64(b.Y2) * scale)),
		}
	}
	return scaled
}
