package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed pieces/*.svg
var pieceFiles embed.FS

type pieceKey struct {
	letter string
	size   int
}

var (
	pieceCache   = map[pieceKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// pieceImage rasterizes the piece for a board letter ("P", "k", ...).
func pieceImage(letter string, size int) (image.Image, error) {
	key := pieceKey{letter: letter, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	name := "pieces/" + strings.ToLower(letter) + ".svg"
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(colorize(data, isWhite(letter))))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}

func isWhite(letter string) bool {
	return letter != "" && letter[0] >= 'A' && letter[0] <= 'Z'
}

func colorize(svg []byte, white bool) []byte {
	fill, stroke := "#f8f8f8", "#1a1a1a"
	if !white {
		fill, stroke = "#262626", "#0a0a0a"
	}
	out := bytes.ReplaceAll(svg, []byte("FILL"), []byte(fill))
	return bytes.ReplaceAll(out, []byte("STROKE"), []byte(stroke))
}
