package processor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"multimodal-rag/internal/models"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

var errUnsupportedImage = errors.New("unsupported image encoding")

// extractImages writes every decodable image XObject of the page to ImageDir
// and returns one Image element per written file.
func (p *PDFProcessor) extractImages(pageNum int, page pdf.Page) []models.RawElement {
	if p.ImageDir == "" {
		return nil
	}

	xobjects := page.Resources().Key("XObject")
	if xobjects.Kind() != pdf.Dict {
		return nil
	}

	var elements []models.RawElement
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}

		path, err := p.saveImage(obj)
		if err != nil {
			p.Logger.Warn("skipping page image", "page", pageNum, "name", name, "error", err)
			continue
		}
		elements = append(elements, models.RawElement{
			Type:      models.ElementImage,
			Page:      pageNum,
			ImagePath: path,
		})
	}
	return elements
}

func (p *PDFProcessor) saveImage(obj pdf.Value) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to decode image stream: %v", r)
		}
	}()

	if !flateOnly(obj.Key("Filter")) {
		return "", errUnsupportedImage
	}
	if bpc := obj.Key("BitsPerComponent").Int64(); bpc != 8 {
		return "", fmt.Errorf("%w: %d bits per component", errUnsupportedImage, bpc)
	}
	components := colorComponents(obj.Key("ColorSpace"))
	if components == 0 {
		return "", fmt.Errorf("%w: color space", errUnsupportedImage)
	}

	rc := obj.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read image stream: %w", err)
	}

	img, err := decodeRaw(data, int(obj.Key("Width").Int64()), int(obj.Key("Height").Int64()), components)
	if err != nil {
		return "", err
	}
	return writePNG(p.ImageDir, img)
}

// flateOnly reports whether the stream filters are ones the reader can decode
func flateOnly(filter pdf.Value) bool {
	switch filter.Kind() {
	case pdf.Null:
		return true
	case pdf.Name:
		return filter.Name() == "FlateDecode"
	case pdf.Array:
		for i := 0; i < filter.Len(); i++ {
			if filter.Index(i).Name() != "FlateDecode" {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func colorComponents(cs pdf.Value) int {
	switch cs.Kind() {
	case pdf.Name:
		switch cs.Name() {
		case "DeviceGray":
			return 1
		case "DeviceRGB":
			return 3
		}
	case pdf.Array:
		if cs.Index(0).Name() == "ICCBased" {
			if n := cs.Index(1).Key("N").Int64(); n == 1 || n == 3 {
				return int(n)
			}
		}
	}
	return 0
}

// decodeRaw builds an image from 8-bit gray or RGB samples
func decodeRaw(data []byte, width, height, components int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if len(data) < width*height*components {
		return nil, fmt.Errorf("image stream too short: got %d bytes, want %d", len(data), width*height*components)
	}

	switch components {
	case 1:
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, data[:width*height])
		return img, nil
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := (y*width + x) * 3
				img.SetNRGBA(x, y, color.NRGBA{R: data[i], G: data[i+1], B: data[i+2], A: 0xff})
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d components", errUnsupportedImage, components)
	}
}

func writePNG(dir string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return path, nil
}
