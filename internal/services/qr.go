package services

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	maxQRSize     = 2048
)

// QROptions control a rendered code. Colors are hex strings like "#1a1a2e";
// a Size outside (0, maxQRSize] falls back to the default.
type QROptions struct {
	Content string
	Size    int
	FgColor string
	BgColor string
}

type QRService struct{}

func NewQRService() *QRService {
	return &QRService{}
}

func (s *QRService) size(opts QROptions) int {
	if opts.Size <= 0 || opts.Size > maxQRSize {
		return defaultQRSize
	}
	return opts.Size
}

// GeneratePNG renders opts.Content as a PNG QR code.
func (s *QRService) GeneratePNG(opts QROptions) ([]byte, error) {
	qr, err := qrcode.New(opts.Content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	if opts.FgColor != "" {
		fg, err := parseHexColor(opts.FgColor)
		if err != nil {
			return nil, err
		}
		qr.ForegroundColor = fg
	}
	if opts.BgColor != "" {
		bg, err := parseHexColor(opts.BgColor)
		if err != nil {
			return nil, err
		}
		qr.BackgroundColor = bg
	}

	return qr.PNG(s.size(opts))
}

// GenerateSVG renders opts.Content as a scalable SVG QR code. Print shops
// ask for vector artwork, so this walks the module bitmap and emits one
// rect per dark module.
func (s *QRService) GenerateSVG(opts QROptions) ([]byte, error) {
	qr, err := qrcode.New(opts.Content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	fg := "#000000"
	if opts.FgColor != "" {
		if _, err := parseHexColor(opts.FgColor); err != nil {
			return nil, err
		}
		fg = "#" + strings.TrimPrefix(opts.FgColor, "#")
	}
	bg := "#ffffff"
	if opts.BgColor != "" {
		if _, err := parseHexColor(opts.BgColor); err != nil {
			return nil, err
		}
		bg = "#" + strings.TrimPrefix(opts.BgColor, "#")
	}

	bitmap := qr.Bitmap()
	modules := len(bitmap)
	size := s.size(opts)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, size, size, modules, modules)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="%s"/>`, modules, modules, bg)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, `<rect x="%d" y="%d" width="1" height="1" fill="%s"/>`, x, y, fg)
			}
		}
	}
	b.WriteString(`</svg>`)

	return []byte(b.String()), nil
}

func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q, expected RRGGBB", s)
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
