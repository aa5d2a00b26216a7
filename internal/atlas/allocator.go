package atlas

import (
	"errors"
	"fmt"
)

// Allocation errors.
var (
	// ErrAtlasFull is returned when no atlas region can fit another cell.
	ErrAtlasFull = errors.New("atlas: texture atlas is full")
)

// Cell placement settings.
const (
	// maxAtlasSize caps the atlas texture dimension. 4096 is safe on
	// every GPU the wgpu backends target.
	maxAtlasSize = 4096

	// cellPadding is the gap between cells, preventing sampler bleed
	// between neighbors under linear filtering.
	cellPadding = 1
)

// Region is a rectangular area inside the atlas texture, in pixels.
type Region struct {
	X, Y, W, H int
}

// IsValid reports whether the region has positive dimensions.
func (r Region) IsValid() bool {
	return r.W > 0 && r.H > 0
}

// Contains reports whether the point (x, y) lies inside the region.
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

func (r Region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

// shelf is one horizontal row of the shelf-packing layout.
type shelf struct {
	y      int // top edge
	height int // tallest cell placed so far, plus padding
	nextX  int // next free x position
}

// cellAllocator places square glyph/sentence cells into a fixed-size
// atlas with a shelf-packing pass: each cell lands on the first shelf
// with room, or opens a new shelf below. Cells within one build are
// mostly uniform, so shelves pack tightly.
type cellAllocator struct {
	width   int
	height  int
	shelves []*shelf
}

func newCellAllocator(width, height int) *cellAllocator {
	if width > maxAtlasSize {
		width = maxAtlasSize
	}
	if height > maxAtlasSize {
		height = maxAtlasSize
	}
	return &cellAllocator{width: width, height: height}
}

// allocate finds space for one w×h cell. Returns ErrAtlasFull when
// neither an existing shelf nor a new one can hold it.
func (a *cellAllocator) allocate(w, h int) (Region, error) {
	if w <= 0 || h <= 0 || w+cellPadding > a.width || h+cellPadding > a.height {
		return Region{}, ErrAtlasFull
	}
	padW := w + cellPadding
	padH := h + cellPadding

	for _, s := range a.shelves {
		if s.nextX+padW > a.width {
			continue
		}
		if padH > s.height && s.nextX > 0 {
			continue
		}
		r := Region{X: s.nextX, Y: s.y, W: w, H: h}
		s.nextX += padW
		if padH > s.height {
			s.height = padH
		}
		return r, nil
	}

	newY := 0
	if n := len(a.shelves); n > 0 {
		last := a.shelves[n-1]
		newY = last.y + last.height
	}
	if newY+padH > a.height {
		return Region{}, ErrAtlasFull
	}
	a.shelves = append(a.shelves, &shelf{y: newY, height: padH, nextX: padW})
	return Region{X: 0, Y: newY, W: w, H: h}, nil
}
