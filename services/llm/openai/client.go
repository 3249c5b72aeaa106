// Package openai is the OpenAI Responses API completion provider.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/syllabus"
)

const (
	providerName = "openai"
	systemPrompt = "You extract assignment information from course syllabi. Always respond with valid JSON only."
	temperature  = 0.1
)

// Client implements syllabus.Completer and syllabus.FileStore.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     core.Logger
}

var (
	_ syllabus.Completer = (*Client)(nil)
	_ syllabus.FileStore = (*Client)(nil)
)

func NewClient(conf *core.Config, logger core.Logger) (*Client, error) {
	if strings.TrimSpace(conf.LLM.OpenAIKey) == "" {
		return nil, errors.New("openai: missing API key")
	}
	timeout := conf.LLM.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		apiKey:     conf.LLM.OpenAIKey,
		baseURL:    strings.TrimRight(conf.LLM.OpenAIBaseURL, "/"),
		model:      conf.LLM.OpenAIModel,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (c *Client) Name() string { return providerName }

type (
	inputMessage struct {
		Role    string      `json:"role"`
		Content interface{} `json:"content"`
	}

	responsesRequest struct {
		Model       string         `json:"model"`
		Input       []inputMessage `json:"input"`
		Temperature *float64       `json:"temperature,omitempty"`
	}

	responsesResponse struct {
		Output []struct {
			Type    string `json:"type"`
			Role    string `json:"role,omitempty"`
			Content []struct {
				Type    string `json:"type"`
				Text    string `json:"text,omitempty"`
				Refusal string `json:"refusal,omitempty"`
			} `json:"content,omitempty"`
		} `json:"output"`
	}

	fileResponse struct {
		ID string `json:"id"`
	}

	errorResponse struct {
		Error struct {
			Message string      `json:"message"`
			Type    string      `json:"type"`
			Code    interface{} `json:"code"`
		} `json:"error"`
	}
)

// Complete sends one Responses API request and returns the concatenated output text.
func (c *Client) Complete(ctx context.Context, req syllabus.CompletionRequest) (string, error) {
	content := []map[string]interface{}{
		{"type": "input_text", "text": req.Prompt},
	}
	switch req.Mode {
	case syllabus.ModeVision:
		b64 := req.Base64
		if b64 == "" {
			b64 = base64.StdEncoding.EncodeToString(req.Data)
		}
		content = append(content, map[string]interface{}{
			"type":      "input_image",
			"image_url": "data:" + req.MediaType + ";base64," + b64,
		})
	case syllabus.ModePDF:
		if req.FileRef != "" {
			content = append(content, map[string]interface{}{"type": "input_file", "file_id": req.FileRef})
		} else {
			content = append(content, map[string]interface{}{
				"type":      "input_file",
				"filename":  fileName(req.FileName),
				"file_data": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(req.Data),
			})
		}
	}

	t := temperature
	body := responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
		Temperature: &t,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return "", errors.Wrap(err, "openai: encode request")
	}
	raw, err := c.do(ctx, http.MethodPost, "/v1/responses", "application/json", &buf)
	if err != nil {
		return "", err
	}

	var resp responsesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &syllabus.ProviderError{Provider: providerName, Message: "undecodable response", Err: err}
	}
	text, refusal := extractOutputText(resp)
	if text == "" && refusal != "" {
		return "", &syllabus.ProviderError{Provider: providerName, Code: "refusal", Message: refusal}
	}
	return text, nil
}

// UploadFile stores the document with the "user_data" purpose and returns its file ID.
func (c *Client) UploadFile(ctx context.Context, name, mediaType string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", "user_data"); err != nil {
		return "", errors.Wrap(err, "openai: write purpose")
	}
	part, err := w.CreateFormFile("file", fileName(name))
	if err != nil {
		return "", errors.Wrap(err, "openai: create form file")
	}
	if _, err := part.Write(data); err != nil {
		return "", errors.Wrap(err, "openai: write form file")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "openai: close multipart writer")
	}

	raw, err := c.do(ctx, http.MethodPost, "/v1/files", w.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	var f fileResponse
	if err := json.Unmarshal(raw, &f); err != nil || f.ID == "" {
		return "", &syllabus.ProviderError{Provider: providerName, Message: "file upload returned no id", Err: err}
	}
	return f.ID, nil
}

func (c *Client) DeleteFile(ctx context.Context, ref string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/files/"+ref, "", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "openai: new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// context errors pass through so the caller can tell a timeout from a cancellation
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &syllabus.ProviderError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &syllabus.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp.StatusCode, raw)
	}
	return raw, nil
}

func newHTTPError(status int, raw []byte) *syllabus.ProviderError {
	pe := &syllabus.ProviderError{Provider: providerName, StatusCode: status}
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error.Message != "" {
		pe.Message = er.Error.Message
		switch code := er.Error.Code.(type) {
		case string:
			pe.Code = code
		case nil:
			pe.Code = er.Error.Type
		default:
			pe.Code = fmt.Sprint(code)
		}
		return pe
	}
	pe.Message = strings.TrimSpace(string(raw))
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}

func extractOutputText(resp responsesResponse) (text, refusal string) {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || (item.Role != "" && item.Role != "assistant") {
			continue
		}
		for _, c := range item.Content {
			switch c.Type {
			case "output_text":
				out.WriteString(c.Text)
			case "refusal":
				refusal = c.Refusal
			}
		}
	}
	return out.String(), refusal
}

func fileName(name string) string {
	if name == "" {
		return "syllabus.pdf"
	}
	return name
}
