// Package atlas rasterizes configured glyphs and sentence banners into
// an indexed texture atlas shared by both render backends. Cells are
// square; glyph cells occupy indices [0, GlyphCount) and sentence cells
// follow at [GlyphCount, GlyphCount+SentenceCount). Each cell carries a
// monotone flag: cells whose opaque pixels are all one color can be
// tinted per particle, everything else draws unmodified.
package atlas

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/snowfield/internal/pix"
)

// Build defaults.
const (
	defaultGlyphCell    = 128
	defaultSentenceCell = 256
	defaultAtlasWidth   = 2048

	// glyphSizeRatio is the font size relative to the glyph cell, leaving
	// headroom for ink that overshoots the em box.
	glyphSizeRatio = 0.75

	// sentenceSizeRatio is the font size relative to the sentence cell.
	sentenceSizeRatio = 0.1

	// monotoneTolerance is the per-channel RGB tolerance when testing
	// whether all opaque pixels of a cell share one color.
	monotoneTolerance = 5.0 / 255
)

// Cell is one atlas entry.
type Cell struct {
	Region   Region
	Monotone bool
	Sentence bool
}

// Atlas is a built texture atlas: one pixmap plus per-cell metadata.
// It is immutable after Build; a configuration change rebuilds it.
type Atlas struct {
	pm            *pix.Pixmap
	cells         []Cell
	glyphCount    int
	sentenceCount int
}

// BuildParams configures an atlas build.
type BuildParams struct {
	Letters   []string // one cell each
	Sentences []string // one multi-line banner cell each

	GlyphCellSize    int    // 0 means defaultGlyphCell
	SentenceCellSize int    // 0 means defaultSentenceCell
	FontData         []byte // TTF bytes; nil means the embedded Go Regular
}

// Build rasterizes all cells and computes their monotone flags. The
// atlas is built once per session and rebuilt on configuration change.
func Build(p BuildParams) (*Atlas, error) {
	glyphCell := p.GlyphCellSize
	if glyphCell <= 0 {
		glyphCell = defaultGlyphCell
	}
	sentenceCell := p.SentenceCellSize
	if sentenceCell <= 0 {
		sentenceCell = defaultSentenceCell
	}

	height, err := layoutHeight(len(p.Letters), glyphCell, len(p.Sentences), sentenceCell)
	if err != nil {
		return nil, err
	}

	a := &Atlas{
		pm:            pix.NewPixmap(defaultAtlasWidth, height),
		glyphCount:    len(p.Letters),
		sentenceCount: len(p.Sentences),
	}
	alloc := newCellAllocator(defaultAtlasWidth, height)

	glyphFace, err := newFace(p.FontData, float64(glyphCell)*glyphSizeRatio)
	if err != nil {
		return nil, err
	}
	defer closeFace(glyphFace)

	for _, letter := range p.Letters {
		region, err := alloc.allocate(glyphCell, glyphCell)
		if err != nil {
			return nil, fmt.Errorf("allocate glyph cell: %w", err)
		}
		drawInkCentered(a.pm, region, glyphFace, norm.NFC.String(letter))
		a.cells = append(a.cells, Cell{
			Region:   region,
			Monotone: monotone(a.pm, region),
		})
	}

	if len(p.Sentences) > 0 {
		sentenceFace, err := newFace(p.FontData, float64(sentenceCell)*sentenceSizeRatio)
		if err != nil {
			return nil, err
		}
		defer closeFace(sentenceFace)

		for _, sentence := range p.Sentences {
			region, err := alloc.allocate(sentenceCell, sentenceCell)
			if err != nil {
				return nil, fmt.Errorf("allocate sentence cell: %w", err)
			}
			drawSentence(a.pm, region, sentenceFace, sentence)
			a.cells = append(a.cells, Cell{
				Region:   region,
				Monotone: monotone(a.pm, region),
				Sentence: true,
			})
		}
	}

	return a, nil
}

// layoutHeight sizes the atlas vertically for the requested cells,
// erroring out when even the maximum texture cannot hold them.
func layoutHeight(glyphs, glyphCell, sentences, sentenceCell int) (int, error) {
	rows := func(n, cell int) int {
		if n == 0 {
			return 0
		}
		cols := defaultAtlasWidth / (cell + cellPadding)
		if cols == 0 {
			return -1
		}
		return (n + cols - 1) / cols
	}

	gr := rows(glyphs, glyphCell)
	sr := rows(sentences, sentenceCell)
	if gr < 0 || sr < 0 {
		return 0, fmt.Errorf("%w: cell larger than atlas width", ErrAtlasFull)
	}
	h := gr*(glyphCell+cellPadding) + sr*(sentenceCell+cellPadding)
	if h == 0 {
		h = glyphCell + cellPadding
	}
	if h > maxAtlasSize {
		return 0, fmt.Errorf("%w: %d cells need %dpx of height", ErrAtlasFull, glyphs+sentences, h)
	}
	return h, nil
}

// drawSentence word-wraps the sentence into the cell under the 85% width
// budget and vertically centers the resulting line block.
func drawSentence(dst *pix.Pixmap, region Region, face font.Face, sentence string) {
	lines := wrapText(face, sentence, float64(region.W)*lineWidthBudget)
	if len(lines) == 0 {
		return
	}

	m := face.Metrics()
	lineHeight := fixedToFloat(m.Height)
	ascent := fixedToFloat(m.Ascent)
	blockTop := float64(region.Y) + (float64(region.H)-lineHeight*float64(len(lines)))/2

	for i, line := range lines {
		w := measure(face, line)
		dot := fixed.Point26_6{
			X: floatToFixed(float64(region.X) + (float64(region.W)-w)/2),
			Y: floatToFixed(blockTop + lineHeight*float64(i) + ascent),
		}
		drawString(dst, region, face, line, dot)
	}
}

// monotone scans the opaque pixels of a cell and reports whether they
// all match the first one's RGB within a small tolerance.
func monotone(pm *pix.Pixmap, region Region) bool {
	var ref pix.RGBA
	seen := false
	for y := region.Y; y < region.Y+region.H; y++ {
		for x := region.X; x < region.X+region.W; x++ {
			c := pm.GetPixel(x, y)
			if c.A == 0 {
				continue
			}
			if !seen {
				ref = c
				seen = true
				continue
			}
			if absDiff(c.R, ref.R) > monotoneTolerance ||
				absDiff(c.G, ref.G) > monotoneTolerance ||
				absDiff(c.B, ref.B) > monotoneTolerance {
				return false
			}
		}
	}
	return true
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func closeFace(f font.Face) {
	_ = f.Close()
}

// Pixmap returns the atlas pixel data. The CPU backend samples it
// directly; the GPU backend uploads it once as a texture.
func (a *Atlas) Pixmap() *pix.Pixmap { return a.pm }

// CellCount returns the total number of cells.
func (a *Atlas) CellCount() int { return len(a.cells) }

// GlyphCount returns the number of glyph cells, which is also the index
// of the first sentence cell.
func (a *Atlas) GlyphCount() int { return a.glyphCount }

// SentenceCount returns the number of sentence cells.
func (a *Atlas) SentenceCount() int { return a.sentenceCount }

// Cell returns the metadata for cell i.
func (a *Atlas) Cell(i int) Cell { return a.cells[i] }

// UVRect returns the normalized texture coordinates of cell i as
// (u0, v0, u1, v1).
func (a *Atlas) UVRect(i int) (u0, v0, u1, v1 float64) {
	r := a.cells[i].Region
	w := float64(a.pm.Width())
	h := float64(a.pm.Height())
	return float64(r.X) / w, float64(r.Y) / h,
		float64(r.X+r.W) / w, float64(r.Y+r.H) / h
}
