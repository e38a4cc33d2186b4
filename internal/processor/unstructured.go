package processor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/models"

	"github.com/google/uuid"
)

const (
	unstructuredBackend = "unstructured"
	partitionPath       = "/general/v0/general"
)

// UnstructuredClient partitions documents through the Unstructured API,
// using the hi_res strategy with table structure inference.
type UnstructuredClient struct {
	BaseURL    string
	APIKey     string
	ImageDir   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewUnstructuredClient creates a client for the partition API at baseURL
func NewUnstructuredClient(baseURL, apiKey, imageDir string, timeout time.Duration, log *slog.Logger) *UnstructuredClient {
	return &UnstructuredClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		ImageDir:   imageDir,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger.OrNop(log),
	}
}

type unstructuredElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber    int    `json:"page_number"`
		TextAsHTML    string `json:"text_as_html"`
		ImagePath     string `json:"image_path"`
		ImageBase64   string `json:"image_base64"`
		ImageMimeType string `json:"image_mime_type"`
	} `json:"metadata"`
}

// Extract uploads the document and maps the returned elements
func (c *UnstructuredClient) Extract(ctx context.Context, doc []byte) ([]models.RawElement, error) {
	if len(doc) == 0 {
		return nil, extractionErr(unstructuredBackend, "empty document")
	}

	body, contentType, err := partitionForm(doc)
	if err != nil {
		return nil, &ExtractionError{Backend: unstructuredBackend, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+partitionPath, body)
	if err != nil {
		return nil, &ExtractionError{Backend: unstructuredBackend, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("unstructured-api-key", c.APIKey)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &ExtractionError{Backend: unstructuredBackend, Err: fmt.Errorf("partition request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExtractionError{Backend: unstructuredBackend, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, extractionErr(unstructuredBackend, "partition request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed []unstructuredElement
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ExtractionError{Backend: unstructuredBackend, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	elements := make([]models.RawElement, 0, len(parsed))
	for _, el := range parsed {
		elements = append(elements, c.toRawElement(el))
	}

	c.Logger.Debug("partitioned document", "elements", len(elements), "took", time.Since(start))
	return elements, nil
}

func (c *UnstructuredClient) toRawElement(el unstructuredElement) models.RawElement {
	raw := models.RawElement{
		Type:        models.ElementType(el.Type),
		Content:     el.Text,
		Page:        el.Metadata.PageNumber,
		TableMarkup: el.Metadata.TextAsHTML,
		ImagePath:   el.Metadata.ImagePath,
	}

	if el.Metadata.ImageBase64 != "" && c.ImageDir != "" {
		path, err := saveBase64Image(c.ImageDir, el.Metadata.ImageBase64, el.Metadata.ImageMimeType)
		if err != nil {
			c.Logger.Warn("failed to save element image", "type", el.Type, "page", raw.Page, "error", err)
		} else {
			raw.ImagePath = path
		}
	}
	return raw
}

func partitionForm(doc []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	part, err := w.CreateFormFile("files", "document.pdf")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(doc); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}

	fields := [][2]string{
		{"strategy", "hi_res"},
		{"pdf_infer_table_structure", "true"},
		{"include_page_breaks", "true"},
		{"extract_image_block_types", `["Image", "Table"]`},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return body, w.FormDataContentType(), nil
}

func saveBase64Image(dir, data, mimeType string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+imageExt(mimeType))
	if err := os.WriteFile(path, decoded, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}

func imageExt(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/tiff":
		return ".tiff"
	default:
		return ".jpg"
	}
}
