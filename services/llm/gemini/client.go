// Package gemini is the Vertex AI Gemini completion provider.
// PDFs are read from Cloud Storage when a bucket is configured, and sent inline otherwise.
package gemini

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"cloud.google.com/go/storage"
	"cloud.google.com/go/vertexai/genai"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/syllabus"
)

const (
	providerName = "gemini"
	systemPrompt = "You extract assignment information from course syllabi. Always respond with valid JSON only."
	objectPrefix = "syllabus/"
)

// Client implements syllabus.Completer.
type Client struct {
	genai  *genai.Client
	model  *genai.GenerativeModel
	logger core.Logger
}

var _ syllabus.Completer = (*Client)(nil)

// NewClient connects to Vertex AI with the application default credentials.
func NewClient(ctx context.Context, conf *core.Config, logger core.Logger) (*Client, error) {
	if conf.LLM.GeminiProject == "" || conf.LLM.GeminiRegion == "" {
		return nil, errors.New("gemini: project and region cannot be empty")
	}
	gc, err := genai.NewClient(ctx, conf.LLM.GeminiProject, conf.LLM.GeminiRegion)
	if err != nil {
		return nil, errors.Wrap(err, "genai.NewClient")
	}

	model := gc.GenerativeModel(conf.LLM.GeminiModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	}
	return &Client{genai: gc, model: model, logger: logger}, nil
}

func (c *Client) Name() string { return providerName }

func (c *Client) Close() error {
	return c.genai.Close()
}

func (c *Client) Complete(ctx context.Context, req syllabus.CompletionRequest) (string, error) {
	resp, err := c.model.GenerateContent(ctx, requestParts(req)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", mapError(err)
	}
	return responseText(resp), nil
}

func requestParts(req syllabus.CompletionRequest) []genai.Part {
	parts := []genai.Part{genai.Text(req.Prompt)}
	switch req.Mode {
	case syllabus.ModeVision:
		parts = append(parts, genai.Blob{MIMEType: req.MediaType, Data: req.Data})
	case syllabus.ModePDF:
		if req.FileRef != "" {
			parts = append(parts, genai.FileData{MIMEType: "application/pdf", FileURI: req.FileRef})
		} else {
			parts = append(parts, genai.Blob{MIMEType: "application/pdf", Data: req.Data})
		}
	}
	return parts
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
		// first candidate only
		break
	}
	return b.String()
}

var grpcHTTPStatus = map[codes.Code]int{
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.FailedPrecondition: http.StatusBadRequest,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.NotFound:           http.StatusNotFound,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Internal:           http.StatusInternalServerError,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
}

// mapError turns a gRPC status or a googleapi error into a *syllabus.ProviderError.
func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &syllabus.ProviderError{
			Provider:   providerName,
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Err:        err,
		}
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		return &syllabus.ProviderError{
			Provider:   providerName,
			StatusCode: grpcHTTPStatus[st.Code()],
			Code:       snakeCase(st.Code().String()),
			Message:    st.Message(),
			Err:        err,
		}
	}
	return &syllabus.ProviderError{Provider: providerName, Err: err}
}

// snakeCase turns a gRPC code name into its lower snake form, e.g. "ResourceExhausted" → "resource_exhausted".
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FileClient is a Client that uploads PDFs to a Cloud Storage bucket.
type FileClient struct {
	*Client
	storage *storage.Client
	bucket  string
}

var (
	_ syllabus.Completer = (*FileClient)(nil)
	_ syllabus.FileStore = (*FileClient)(nil)
)

func NewFileClient(ctx context.Context, conf *core.Config, logger core.Logger) (*FileClient, error) {
	c, err := NewClient(ctx, conf, logger)
	if err != nil {
		return nil, err
	}
	sc, err := storage.NewClient(ctx)
	if err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "storage.NewClient")
	}
	return &FileClient{Client: c, storage: sc, bucket: conf.LLM.GeminiBucket}, nil
}

func (c *FileClient) Close() error {
	serr := c.storage.Close()
	if err := c.Client.Close(); err != nil {
		return err
	}
	return serr
}

// UploadFile writes the document to the bucket and returns its gs:// URI.
func (c *FileClient) UploadFile(ctx context.Context, name, mediaType string, data []byte) (string, error) {
	object := objectName(name)
	w := c.storage.Bucket(c.bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = mediaType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", mapError(errors.Wrap(err, "gcs write"))
	}
	if err := w.Close(); err != nil {
		return "", mapError(errors.Wrap(err, "gcs close"))
	}
	return "gs://" + c.bucket + "/" + object, nil
}

// DeleteFile removes an object uploaded by UploadFile. A missing object is not an error.
func (c *FileClient) DeleteFile(ctx context.Context, ref string) error {
	bucket, object, err := parseRef(ref)
	if err != nil {
		return err
	}
	err = c.storage.Bucket(bucket).Object(object).Delete(ctx)
	if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return mapError(err)
}

func objectName(name string) string {
	ext := ".pdf"
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		ext = strings.ToLower(name[i:])
	}
	return objectPrefix + uuid.NewString() + ext
}

func parseRef(ref string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(ref, "gs://")
	if rest == ref {
		return "", "", errors.Errorf("gemini: not a gs:// reference: %q", ref)
	}
	i := strings.IndexByte(rest, '/')
	if i <= 0 || i == len(rest)-1 {
		return "", "", errors.Errorf("gemini: malformed reference: %q", ref)
	}
	return rest[:i], rest[i+1:], nil
}
