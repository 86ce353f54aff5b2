// Package input описывает ввод пользователя на границе с UI и кодирование вложений.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// UserInput — либо PlainText, либо WithAttachments. Вид определяется один раз на границе с UI.
type UserInput interface {
	isUserInput()
}

// PlainText — только текст.
type PlainText struct {
	Text string
}

// WithAttachments — текст и загруженные файлы.
type WithAttachments struct {
	Text  string
	Blobs []Blob
}

func (PlainText) isUserInput()       {}
func (WithAttachments) isUserInput() {}

// Blob — загруженный файл. Open вызывается один раз при кодировании.
type Blob struct {
	Name     string
	MIMEType string
	Open     func() (io.ReadCloser, error)
}

// BytesBlob оборачивает данные, уже прочитанные в память.
func BytesBlob(name, mimeType string, data []byte) Blob {
	return Blob{
		Name:     name,
		MIMEType: mimeType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// InputError — ввод неожиданной формы. Реплика в журнал не попадает.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}

// Unpack разбирает UserInput на текст и вложения.
func Unpack(in UserInput) (string, []Blob, error) {
	var (
		text  string
		blobs []Blob
	)
	switch v := in.(type) {
	case PlainText:
		text = v.Text
	case *PlainText:
		if v == nil {
			return "", nil, &InputError{Reason: "nil input"}
		}
		text = v.Text
	case WithAttachments:
		text, blobs = v.Text, v.Blobs
	case *WithAttachments:
		if v == nil {
			return "", nil, &InputError{Reason: "nil input"}
		}
		text, blobs = v.Text, v.Blobs
	case nil:
		return "", nil, &InputError{Reason: "nil input"}
	default:
		return "", nil, &InputError{Reason: fmt.Sprintf("unexpected input type %T", in)}
	}
	if strings.TrimSpace(text) == "" && len(blobs) == 0 {
		return "", nil, &InputError{Reason: "empty message"}
	}
	return text, blobs, nil
}

// Names возвращает имена файлов в исходном порядке.
func Names(blobs []Blob) []string {
	if len(blobs) == 0 {
		return nil
	}
	names := make([]string, 0, len(blobs))
	for _, b := range blobs {
		names = append(names, b.Name)
	}
	return names
}

var errNoOpener = errors.New("blob has no content")
