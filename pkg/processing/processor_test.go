package processing

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

// createTestImage creates a gray scan-like image with a bright blob
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.NRGBA{220, 220, 220, 255})
			} else {
				img.Set(x, y, color.NRGBA{40, 40, 40, 255})
			}
		}
	}
	return img
}

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	p := NewProcessor()

	img, err := p.DecodeImage(encodeTestPNG(t, createTestImage(64, 48)))
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("Unexpected size %v", img.Bounds())
	}

	if _, err := p.DecodeImage([]byte("not an image")); err == nil {
		t.Error("Expected error for garbage data")
	}
}

func TestValidateImage(t *testing.T) {
	p := NewProcessorWithMinSize(32)

	if err := p.ValidateImage(createTestImage(32, 32)); err != nil {
		t.Errorf("Expected 32x32 to pass, got %v", err)
	}
	if err := p.ValidateImage(createTestImage(64, 31)); err == nil {
		t.Error("Expected error for image below minimum height")
	}
}

func TestToRGB(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 0})
	img.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 255})

	rgb := ToRGB(img)

	if got := rgb.NRGBAAt(0, 0); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("Transparent pixel should flatten to black, got %v", got)
	}
	if got := rgb.NRGBAAt(1, 0); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("Opaque pixel should be kept, got %v", got)
	}
}

func TestEncodeForModel(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(200, 100)

	tests := []struct {
		name           string
		format         string
		maxDim         int
		wantW, wantH   int
		wantJPEGHeader bool
	}{
		{"png full size", "png", 0, 200, 100, false},
		{"png downscaled", "png", 50, 50, 25, false},
		{"max larger than image", "", 400, 200, 100, false},
		{"jpeg", "jpg", 0, 200, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := p.EncodeForModel(src, tt.format, tt.maxDim, 90)
			if err != nil {
				t.Fatalf("EncodeForModel failed: %v", err)
			}
			if tt.wantJPEGHeader != bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
				t.Errorf("Unexpected encoding header % x", data[:4])
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("Failed to decode result: %v", err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantW, tt.wantH, cfg.Width, cfg.Height)
			}
		})
	}
}

func TestScaleFactor(t *testing.T) {
	img := createTestImage(400, 200)

	if got := ScaleFactor(img, 0); got != 1 {
		t.Errorf("Expected 1 without limit, got %v", got)
	}
	if got := ScaleFactor(img, 800); got != 1 {
		t.Errorf("Expected 1 when image fits, got %v", got)
	}
	if got := ScaleFactor(img, 100); got != 4 {
		t.Errorf("Expected 4, got %v", got)
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(40, 30)
	dir := t.TempDir()

	for _, format := range []string{"png", "jpg", "webp"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "scan."+format)
			if err := p.SaveImage(src, path, format, 90, true); err != nil {
				t.Fatalf("SaveImage failed: %v", err)
			}

			img, err := p.LoadImageSmart(path)
			if err != nil {
				t.Fatalf("LoadImage failed: %v", err)
			}
			if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
				t.Errorf("Unexpected size %v", img.Bounds())
			}
		})
	}

	if _, err := p.LoadImage(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadImageFromURL(t *testing.T) {
	data := encodeTestPNG(t, createTestImage(20, 20))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scan.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProcessor()

	img, err := p.LoadImageSmart(srv.URL + "/scan.png")
	if err != nil {
		t.Fatalf("LoadImageFromURL failed: %v", err)
	}
	if img.Bounds().Dx() != 20 {
		t.Errorf("Unexpected size %v", img.Bounds())
	}

	if _, err := p.LoadImageFromURL(srv.URL + "/page.html"); err == nil {
		t.Error("Expected error for non-image content type")
	}
	if _, err := p.LoadImageFromURL(srv.URL + "/missing.png"); err == nil {
		t.Error("Expected error for 404")
	}
	if _, err := p.LoadImageFromURL("ftp://example.com/scan.png"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}

func TestEncodePNG(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 8, 8))
	data, err := EncodePNG(mask)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("Expected PNG signature")
	}
}
