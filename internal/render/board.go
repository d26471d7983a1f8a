// Package render draws board snapshots as PNG images.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/chessroom/internal/rules"
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	lastMoveFill        = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	backgroundColor     = color.RGBA{28, 31, 46, 255}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
	captionTextColor    = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
)

// Board is what gets drawn.
type Board struct {
	Matrix   rules.Matrix
	LastMove *rules.Move
	Caption  string
}

type Renderer struct {
	squareSize int
	margin     int
	top        int
}

type Option func(*Renderer)

func WithSquareSize(px int) Option {
	return func(r *Renderer) {
		if px > 0 {
			r.squareSize = px
		}
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{squareSize: 64, margin: 24, top: 32}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Size returns the output dimensions.
func (r *Renderer) Size() (w, h int) {
	return r.squareSize*8 + r.margin*2, r.squareSize*8 + r.top + r.margin
}

func (r *Renderer) origin() image.Point { return image.Point{X: r.margin, Y: r.top} }

func (r *Renderer) RenderPNG(ctx context.Context, b Board) ([]byte, error) {
	w, h := r.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	r.drawSquares(img)
	if b.LastMove != nil {
		r.drawOverlay(img, b.LastMove.From, lastMoveFill)
		r.drawOverlay(img, b.LastMove.To, lastMoveFill)
	}
	if err := r.drawPieces(ctx, img, b.Matrix); err != nil {
		return nil, err
	}
	r.drawCoordinates(img)
	if b.Caption != "" {
		drawText(img, b.Caption, r.margin, r.top/2+5, captionTextColor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) squareRect(sq rules.Square) image.Rectangle {
	o := r.origin()
	x := o.X + sq.Col*r.squareSize
	y := o.Y + sq.Row*r.squareSize
	return image.Rect(x, y, x+r.squareSize, y+r.squareSize)
}

func squareColor(sq rules.Square) color.Color {
	if (sq.Row+sq.Col)%2 == 1 {
		return darkSquare
	}
	return lightSquare
}

func (r *Renderer) drawSquares(dst imagedraw.Image) {
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			sq := rules.Square{Row: row, Col: col}
			imagedraw.Draw(dst, r.squareRect(sq), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func (r *Renderer) drawOverlay(dst imagedraw.Image, sq rules.Square, clr color.Color) {
	if !sq.Valid() {
		return
	}
	imagedraw.Draw(dst, r.squareRect(sq), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func (r *Renderer) drawPieces(ctx context.Context, dst imagedraw.Image, m rules.Matrix) error {
	for row := 0; row < 8; row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for col := 0; col < 8; col++ {
			letter := m[row][col]
			if letter == "" || letter == "." {
				continue
			}
			piece, err := pieceImage(letter, r.squareSize)
			if err != nil {
				return err
			}
			imagedraw.Draw(dst, r.squareRect(rules.Square{Row: row, Col: col}), piece, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func (r *Renderer) drawCoordinates(dst imagedraw.Image) {
	o := r.origin()
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		rank := string(rune('8' - i))
		file := string(rune('a' + i))
		center := o.Y + i*r.squareSize + r.squareSize/2
		drawCentered(dst, rank, o.X-r.margin/2, center+ascent/2, coordinateTextColor)
		drawCentered(dst, file, o.X+i*r.squareSize+r.squareSize/2, o.Y+8*r.squareSize+ascent+4, coordinateTextColor)
	}
}

func drawText(dst imagedraw.Image, text string, x, baseline int, clr color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(clr), Face: basicfont.Face7x13, Dot: fixed.P(x, baseline)}
	d.DrawString(text)
}

func drawCentered(dst imagedraw.Image, text string, centerX, baseline int, clr color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(clr), Face: basicfont.Face7x13}
	width := d.MeasureString(text).Ceil()
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}
