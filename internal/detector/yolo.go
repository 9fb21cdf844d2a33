package detector

import (
	"fmt"
	"math"
)

// yoloLayout describes a single-output YOLO head: 4 box attributes (cx, cy,
// w, h) followed by one score per class, for every anchor. The tensor is
// either [1, attrs, anchors] or, when transposed, [1, anchors, attrs].
type yoloLayout struct {
	attrs      int
	anchors    int
	transposed bool
}

type candidate struct {
	cx, cy, w, h float64
	score        float64
}

func newYOLOLayout(dims []int64, numClasses int) (yoloLayout, error) {
	if len(dims) != 3 || dims[0] != 1 {
		return yoloLayout{}, fmt.Errorf("unexpected output shape %v", dims)
	}

	want := int64(4 + numClasses)
	switch {
	case dims[1] == want && dims[2] > 0:
		return yoloLayout{attrs: int(want), anchors: int(dims[2])}, nil
	case dims[2] == want && dims[1] > 0:
		return yoloLayout{attrs: int(want), anchors: int(dims[1]), transposed: true}, nil
	default:
		return yoloLayout{}, fmt.Errorf("output shape %v does not match %d classes", dims, numClasses)
	}
}

// anchorCount is the number of predictions a stride 8/16/32 head emits for a
// square input.
func anchorCount(inputSize int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := inputSize / stride
		n += side * side
	}
	return n
}

func (l yoloLayout) size() int {
	return l.attrs * l.anchors
}

func (l yoloLayout) at(out []float32, attr, anchor int) float64 {
	if l.transposed {
		return float64(out[anchor*l.attrs+attr])
	}
	return float64(out[attr*l.anchors+anchor])
}

// best returns the anchor with the highest class score at or above threshold.
func (l yoloLayout) best(out []float32, threshold float64) (candidate, bool) {
	var (
		top   candidate
		found bool
	)

	for i := 0; i < l.anchors; i++ {
		score := 0.0
		for c := 4; c < l.attrs; c++ {
			score = math.Max(score, l.at(out, c, i))
		}
		if score < threshold || (found && score <= top.score) {
			continue
		}

		top = candidate{
			cx:    l.at(out, 0, i),
			cy:    l.at(out, 1, i),
			w:     l.at(out, 2, i),
			h:     l.at(out, 3, i),
			score: score,
		}
		found = true
	}

	return top, found
}

// scaleBox maps a candidate from model-input space back to a width x height
// image and clamps it to the image bounds.
func scaleBox(c candidate, inputSize, width, height int) [4]float64 {
	sx := float64(width) / float64(inputSize)
	sy := float64(height) / float64(inputSize)

	clamp := func(v, hi float64) float64 {
		return math.Min(math.Max(v, 0), hi)
	}

	return [4]float64{
		clamp((c.cx-c.w/2)*sx, float64(width)),
		clamp((c.cy-c.h/2)*sy, float64(height)),
		clamp((c.cx+c.w/2)*sx, float64(width)),
		clamp((c.cy+c.h/2)*sy, float64(height)),
	}
}
