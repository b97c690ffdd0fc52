package types

import (
	"errors"
	"fmt"
)

// Point is an integer pixel coordinate parsed out of model text
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BoundingBox is an axis-aligned rectangle given by two opposite corners.
// Corner ordering is whatever the model produced; use Normalized before
// treating X1,Y1 as the top-left corner.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Normalized returns the box with min/max ordered per axis
func (b BoundingBox) Normalized() BoundingBox {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return b
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", b.X1, b.Y1, b.X2, b.Y2)
}

// PayloadKind tags the shape of a decoded inference response
type PayloadKind int

const (
	PayloadUnrecognized PayloadKind = iota
	PayloadError
	PayloadTextObject
	PayloadTextList
	PayloadPlainString
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadError:
		return "error"
	case PayloadTextObject:
		return "text-object"
	case PayloadTextList:
		return "text-list"
	case PayloadPlainString:
		return "plain-string"
	default:
		return "unrecognized"
	}
}

// Payload is the decoded result of one inference call.
//
// Only the fields relevant to Kind are set:
//   - PayloadError: Error and, when the transport reported one, Status
//   - PayloadTextObject: Text and HasText
//   - PayloadTextList: Items
//   - PayloadPlainString: Text
type Payload struct {
	Kind    PayloadKind
	Text    string
	HasText bool
	Error   string
	Status  int
	Items   []Payload
}

var (
	// ErrNoRecognizedStructure means the payload had no usable text shape
	ErrNoRecognizedStructure = errors.New("no recognized response structure")
	// ErrEmptyGeneratedText means the text field was present but empty
	ErrEmptyGeneratedText = errors.New("model returned empty generated text")
	// ErrInsufficientPoints means fewer than two coordinate points were found
	ErrInsufficientPoints = errors.New("insufficient coordinate points for a bounding box")
)

// UpstreamError is a non-success outcome reported by the inference collaborator
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return "upstream error: " + e.Message
}

// Mode selects how detected boxes are rendered
type Mode string

const (
	ModeHighlight Mode = "highlight"
	ModeMask      Mode = "mask"
)

// ParseMode validates a user-supplied mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHighlight, ModeMask:
		return Mode(s), nil
	case "":
		return ModeHighlight, nil
	}
	return "", fmt.Errorf("unknown mode %q (use highlight or mask)", s)
}
