// Package geometry turns extracted points into bounding boxes.
package geometry

import (
	"fmt"

	"github.com/menta2k/mri-highlighter/pkg/types"
)

// BoxMode selects how points are grouped into boxes
type BoxMode string

const (
	// FirstPair uses the first two points as one box, as given
	FirstPair BoxMode = "first-pair"
	// Paired groups consecutive points into normalized boxes
	Paired BoxMode = "paired"
)

// ParseBoxMode validates a user-supplied box mode
func ParseBoxMode(s string) (BoxMode, error) {
	switch BoxMode(s) {
	case FirstPair, Paired:
		return BoxMode(s), nil
	case "":
		return FirstPair, nil
	}
	return "", fmt.Errorf("unknown box mode %q (use first-pair or paired)", s)
}

// BuildBoxes makes a single box from the first two points. Further points
// are ignored and the corners are not reordered.
func BuildBoxes(points []types.Point) ([]types.BoundingBox, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInsufficientPoints, len(points))
	}
	p1, p2 := points[0], points[1]
	return []types.BoundingBox{{X1: p1.X, Y1: p1.Y, X2: p2.X, Y2: p2.Y}}, nil
}

// BuildPairedBoxes makes one normalized box per consecutive pair of points.
// A trailing unpaired point is dropped.
func BuildPairedBoxes(points []types.Point) ([]types.BoundingBox, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInsufficientPoints, len(points))
	}
	boxes := make([]types.BoundingBox, 0, len(points)/2)
	for i := 0; i+1 < len(points); i += 2 {
		p1, p2 := points[i], points[i+1]
		box := types.BoundingBox{X1: p1.X, Y1: p1.Y, X2: p2.X, Y2: p2.Y}
		boxes = append(boxes, box.Normalized())
	}
	return boxes, nil
}

// Build dispatches on mode
func Build(mode BoxMode, points []types.Point) ([]types.BoundingBox, error) {
	if mode == Paired {
		return BuildPairedBoxes(points)
	}
	return BuildBoxes(points)
}
