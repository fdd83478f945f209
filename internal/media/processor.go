// Package media handles uploaded images: validating and resizing them, and
// storing the result on local disk or in S3.
package media

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/disintegration/imaging"

	// Register decoders for the accepted upload formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/fitted/fitted/internal/apperror"
)

const (
	// MaxUploadBytes bounds a single uploaded image.
	MaxUploadBytes = 10 << 20

	// Every stored image is a square JPEG of this size.
	ImageSize   = 500
	jpegQuality = 85

	// ContentType of every processed image.
	ContentType = "image/jpeg"
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Processor turns an uploaded file into the stored 500×500 JPEG.
type Processor struct {
	maxBytes int64
}

func NewProcessor() *Processor {
	return &Processor{maxBytes: MaxUploadBytes}
}

// Process reads r, checks the sniffed content type (the client-supplied
// header is ignored), and crops-and-resizes to ImageSize×ImageSize.
// Invalid input is reported as a validation error.
func (p *Processor) Process(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("media: reading upload: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, apperror.ValidationFailed("image", "Image must be 10 MB or smaller")
	}
	if len(data) == 0 {
		return nil, apperror.ValidationFailed("image", "No file uploaded")
	}

	if !allowedTypes[http.DetectContentType(data)] {
		return nil, apperror.ValidationFailed("image", "Only image files are allowed")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperror.ValidationFailed("image", "Image could not be read")
	}

	img = imaging.Fill(img, ImageSize, ImageSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("media: encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
