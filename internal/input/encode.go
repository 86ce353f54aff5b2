package input

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"strings"
)

// Image — закодированное изображение. Живёт только в рамках одного запроса.
type Image struct {
	Format string // подтип MIME: png, jpeg, ...
	Data   string // base64
}

// AttachmentEncodingError — не удалось закодировать одно вложение.
type AttachmentEncodingError struct {
	Name  string
	Cause error
}

func (e *AttachmentEncodingError) Error() string {
	return fmt.Sprintf("encode attachment %q: %v", e.Name, e.Cause)
}

func (e *AttachmentEncodingError) Unwrap() error { return e.Cause }

// EncodeResult — результат по одному вложению: либо Image, либо Err.
type EncodeResult struct {
	Name  string
	Image Image
	Err   *AttachmentEncodingError
}

func (r EncodeResult) OK() bool { return r.Err == nil }

// EncodeImages кодирует каждое вложение независимо. Ошибка одного не мешает остальным,
// решение что с ней делать остаётся за вызывающим.
func EncodeImages(blobs []Blob) []EncodeResult {
	results := make([]EncodeResult, 0, len(blobs))
	for _, b := range blobs {
		img, err := encodeOne(b)
		res := EncodeResult{Name: b.Name, Image: img}
		if err != nil {
			res.Image = Image{}
			res.Err = &AttachmentEncodingError{Name: b.Name, Cause: err}
		}
		results = append(results, res)
	}
	return results
}

// Successful отбирает удачно закодированные изображения, сохраняя порядок.
func Successful(results []EncodeResult) []Image {
	images := make([]Image, 0, len(results))
	for _, r := range results {
		if r.OK() {
			images = append(images, r.Image)
		}
	}
	return images
}

func encodeOne(b Blob) (Image, error) {
	format, err := FormatFromMIME(b.MIMEType)
	if err != nil {
		return Image{}, err
	}
	if b.Open == nil {
		return Image{}, errNoOpener
	}
	rc, err := b.Open()
	if err != nil {
		return Image{}, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return Image{}, fmt.Errorf("read: %w", err)
	}
	return Image{Format: format, Data: base64.StdEncoding.EncodeToString(data)}, nil
}

// FormatFromMIME берёт подтип из MIME-типа: "image/png" -> "png".
func FormatFromMIME(mimeType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", fmt.Errorf("mime type %q: %w", mimeType, err)
	}
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || subtype == "" {
		return "", fmt.Errorf("mime type %q has no subtype", mimeType)
	}
	return subtype, nil
}
