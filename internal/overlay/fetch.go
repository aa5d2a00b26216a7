package overlay

import (
	"context"
	"fmt"
	"image"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/gogpu/snowfield/internal/pix"

	// Decoders for the formats asset URLs may serve. For animated GIFs
	// image.Decode yields the first frame.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// spriteSize is the canonical square every fetched image is scaled
// into. Particles then map it onto their own size when drawing.
const spriteSize = 64

// maxAssetBytes caps a single asset download.
const maxAssetBytes = 8 << 20

// fetchSprite downloads and decodes one image asset and scales it into
// the canonical sprite square, preserving aspect ratio.
func fetchSprite(ctx context.Context, client *http.Client, url string) (*pix.Pixmap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	img, _, err := image.Decode(http.MaxBytesReader(nil, resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return scaleSprite(img), nil
}

// scaleSprite fits img into the sprite square, centered, with
// transparent letterboxing on the shorter axis.
func scaleSprite(img image.Image) *pix.Pixmap {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return placeholderSprite()
	}

	w, h := spriteSize, spriteSize
	if b.Dx() > b.Dy() {
		h = spriteSize * b.Dy() / b.Dx()
	} else {
		w = spriteSize * b.Dx() / b.Dy()
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, spriteSize, spriteSize))
	x0 := (spriteSize - w) / 2
	y0 := (spriteSize - h) / 2
	draw.ApproxBiLinear.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), img, b, draw.Over, nil)
	return pix.FromImage(dst)
}

// placeholderSprite is what a particle draws while its asset is still
// loading or when the fetch failed: fully transparent, so the particle
// simulates but stays invisible.
func placeholderSprite() *pix.Pixmap {
	return pix.NewPixmap(1, 1)
}
