// Package coords finds pixel coordinates written in free model text.
package coords

import (
	"iter"
	"regexp"
	"slices"
	"strconv"

	"github.com/menta2k/mri-highlighter/pkg/types"
)

var (
	pointPattern = regexp.MustCompile(`\((\d+),\s*(\d+)\)`)
	spanPattern  = regexp.MustCompile(`\((\d+),\s*(\d+)\)\s*to\s*\((\d+),\s*(\d+)\)`)
)

// Points yields every "(x, y)" pair in text in order of appearance.
// Each range over the sequence rescans text from the start.
func Points(text string) iter.Seq[types.Point] {
	return func(yield func(types.Point) bool) {
		for _, m := range pointPattern.FindAllStringSubmatch(text, -1) {
			x, errX := strconv.Atoi(m[1])
			y, errY := strconv.Atoi(m[2])
			if errX != nil || errY != nil {
				continue
			}
			if !yield(types.Point{X: x, Y: y}) {
				return
			}
		}
	}
}

// Extract collects Points into a slice; the result is empty, never nil
func Extract(text string) []types.Point {
	points := slices.Collect(Points(text))
	if points == nil {
		return []types.Point{}
	}
	return points
}

// ExtractSpan finds the first "(x1, y1) to (x2, y2)" span
func ExtractSpan(text string) (types.BoundingBox, bool) {
	for box := range Spans(text) {
		return box, true
	}
	return types.BoundingBox{}, false
}

// Spans yields every "(x1, y1) to (x2, y2)" span in text
func Spans(text string) iter.Seq[types.BoundingBox] {
	return func(yield func(types.BoundingBox) bool) {
		for _, m := range spanPattern.FindAllStringSubmatch(text, -1) {
			box, ok := parseSpan(m[1:])
			if !ok {
				continue
			}
			if !yield(box) {
				return
			}
		}
	}
}

// ExtractSpans collects Spans into a slice
func ExtractSpans(text string) []types.BoundingBox {
	return slices.Collect(Spans(text))
}

func parseSpan(groups []string) (types.BoundingBox, bool) {
	var v [4]int
	for i, g := range groups {
		n, err := strconv.Atoi(g)
		if err != nil {
			return types.BoundingBox{}, false
		}
		v[i] = n
	}
	return types.BoundingBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, true
}
