// internal/infra/qrcode/renderer.go
package qrcode

import (
	"fmt"
	"image/color"

	qr "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length of rendered codes, in pixels.
const DefaultSize = 200

// Renderer encodes ticket payloads as black-on-white PNG QR codes.
type Renderer struct {
	size  int
	level qr.RecoveryLevel
}

func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{size: size, level: qr.Medium}
}

func (r *Renderer) RenderPNG(content string) ([]byte, error) {
	code, err := qr.New(content, r.level)
	if err != nil {
		return nil, fmt.Errorf("encoding QR content: %w", err)
	}
	code.ForegroundColor = color.Black
	code.BackgroundColor = color.White

	png, err := code.PNG(r.size)
	if err != nil {
		return nil, fmt.Errorf("rendering QR png: %w", err)
	}
	return png, nil
}
