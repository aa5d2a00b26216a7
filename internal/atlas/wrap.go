package atlas

import (
	"strings"

	"github.com/go-text/typesetting/segmenter"
	"golang.org/x/image/font"
	"golang.org/x/text/unicode/norm"
)

// lineWidthBudget is the fraction of the cell width a wrapped sentence
// line may occupy.
const lineWidthBudget = 0.85

// wrapText greedily packs text into lines no wider than maxWidth pixels.
// Break opportunities come from the UAX #14 line segmenter, so wrapping
// respects non-breaking spaces, hyphens, and CJK boundaries instead of
// splitting on ASCII spaces only. Text is NFC-normalized first so combining
// sequences measure and render as single glyphs.
func wrapText(face font.Face, text string, maxWidth float64) []string {
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var seg segmenter.Segmenter
	seg.Init([]rune(text))
	iter := seg.LineIterator()

	var lines []string
	var cur strings.Builder

	flush := func() {
		line := strings.TrimRight(cur.String(), " \t\r\n")
		if line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	for iter.Next() {
		line := iter.Line()
		chunk := string(line.Text)

		if cur.Len() > 0 {
			candidate := strings.TrimRight(cur.String()+chunk, " \t\r\n")
			if measure(face, candidate) > maxWidth {
				flush()
			}
		}
		cur.WriteString(chunk)

		if line.IsMandatoryBreak {
			flush()
		}
	}
	flush()
	return lines
}
