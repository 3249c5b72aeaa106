package syllabus

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core"
)

// Mode is how an upload is handed to the completion provider.
type Mode string

const (
	ModePDF    Mode = "pdf-binary"
	ModeVision Mode = "vision"
	ModeText   Mode = "text"
)

const mediaTypePDF = "application/pdf"

var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
}

type (
	// Upload is the uploaded document. It is never persisted.
	Upload struct {
		Name      string
		MediaType string // as declared by the client
		Size      int64
		Content   io.Reader
	}

	// Payload is the intake output: the chosen mode and its content.
	Payload struct {
		Mode      Mode
		FileName  string
		MediaType string
		Text      string // ModeText
		Data      []byte // ModePDF, ModeVision
		Base64    string // ModeVision
		Pages     int    // ModePDF, when validated
	}

	Intake struct {
		maxSize     int64
		validatePDF bool
	}
)

func NewIntake(conf *core.Config) *Intake {
	return &Intake{maxSize: conf.Syllabus.MaxFileSize, validatePDF: conf.Syllabus.ValidatePDF}
}

func (in *Intake) tooLarge(size int64) *Error {
	return &Error{
		Kind:     KindInvalidInput,
		Message:  fmt.Sprintf("File is too large. Please upload files smaller than %dMB.", in.maxSize/core.MiB),
		FileSize: size,
		MaxSize:  in.maxSize,
	}
}

// Accept validates the upload and picks its handling mode. It never calls the provider.
func (in *Intake) Accept(up *Upload) (*Payload, error) {
	if up == nil || up.Content == nil {
		return nil, invalidInput("No file provided")
	}
	if up.Size > in.maxSize {
		return nil, in.tooLarge(up.Size)
	}

	// the declared size is not trusted
	data, err := io.ReadAll(io.LimitReader(up.Content, in.maxSize+1))
	if err != nil {
		return nil, internalError(errors.Wrap(err, "reading upload"))
	}
	if int64(len(data)) > in.maxSize {
		return nil, in.tooLarge(int64(len(data)))
	}
	if len(data) == 0 {
		return nil, invalidInput("File appears to be empty or unreadable")
	}

	p := &Payload{FileName: up.Name, MediaType: in.mediaType(up, data)}
	ext := strings.ToLower(filepath.Ext(up.Name))

	switch {
	case p.MediaType == mediaTypePDF || ext == ".pdf":
		p.Mode = ModePDF
		p.MediaType = mediaTypePDF
		p.Data = data
		if in.validatePDF {
			pages, err := pageCount(data)
			if err != nil {
				return nil, &Error{Kind: KindInvalidInput, Message: "The PDF file appears to be corrupted or unreadable", Err: err}
			}
			p.Pages = pages
		}
	case strings.HasPrefix(p.MediaType, "image/") || imageExts[ext] != "":
		p.Mode = ModeVision
		if !strings.HasPrefix(p.MediaType, "image/") {
			p.MediaType = imageExts[ext]
		}
		p.Data = data
		p.Base64 = base64.StdEncoding.EncodeToString(data)
	default:
		p.Mode = ModeText
		text := string(data)
		if !utf8.ValidString(text) {
			text = strings.ToValidUTF8(text, "\uFFFD")
		}
		if strings.TrimSpace(strings.ReplaceAll(text, "\uFFFD", "")) == "" {
			return nil, invalidInput("File appears to be empty or unreadable")
		}
		p.Text = text
	}
	return p, nil
}

// mediaType normalizes the declared media type, sniffing the content when it is missing or generic.
func (in *Intake) mediaType(up *Upload, data []byte) string {
	mt := strings.ToLower(strings.TrimSpace(up.MediaType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt == "" || mt == "application/octet-stream" {
		sniffed := mimetype.Detect(data)
		mt, _, _ = mime.ParseMediaType(sniffed.String())
	}
	return mt
}

func pageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, errors.Wrap(err, "validating pdf")
	}
	return ctx.PageCount, nil
}
