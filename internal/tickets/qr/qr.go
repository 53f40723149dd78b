// Package qr renders confirmation links as QR codes.
package qr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	Size         = 256
	MarginModule = 1
)

// Generator only ever encodes a link back to the site, never order data,
// so a scan always reads live order state.
type Generator struct {
	siteOrigin string
}

func NewGenerator(siteOrigin string) *Generator {
	return &Generator{siteOrigin: strings.TrimRight(siteOrigin, "/")}
}

func (g *Generator) ConfirmationURL(lang, sessionID string) string {
	return fmt.Sprintf("%s/%s/confirmation?session_id=%s", g.siteOrigin, lang, url.QueryEscape(sessionID))
}

// PNG encodes content at Size pixels with a one-module quiet zone.
func (g *Generator) PNG(content string) ([]byte, error) {
	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	code.DisableBorder = true
	modules := code.Bitmap()

	n := len(modules) + 2*MarginModule
	img := image.NewPaletted(image.Rect(0, 0, Size, Size), color.Palette{color.White, color.Black})
	for y := 0; y < Size; y++ {
		my := y*n/Size - MarginModule
		for x := 0; x < Size; x++ {
			mx := x*n/Size - MarginModule
			if my >= 0 && my < len(modules) && mx >= 0 && mx < len(modules) && modules[my][mx] {
				img.SetColorIndex(x, y, 1)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) DataURL(content string) (string, error) {
	raw, err := g.PNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), nil
}
