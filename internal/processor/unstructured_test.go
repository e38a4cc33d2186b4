package processor

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"multimodal-rag/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const partitionResponse = `[
  {"type": "Title", "text": "Annual Report", "metadata": {"page_number": 1}},
  {"type": "Table", "text": "A B 1 2", "metadata": {"page_number": 2,
    "text_as_html": "<table><tr><td>A</td><td>B</td></tr></table>"}},
  {"type": "Image", "text": "", "metadata": {"page_number": 3,
    "image_base64": "%s", "image_mime_type": "image/png"}}
]`

func TestUnstructuredClientExtract(t *testing.T) {
	imageBytes := []byte("fake-png-bytes")
	var gotForm map[string][]string
	var gotFile []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, partitionPath, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("unstructured-api-key"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotForm = r.MultipartForm.Value
		if f, _, err := r.FormFile("files"); assert.NoError(t, err) {
			gotFile, _ = io.ReadAll(f)
		}

		w.Header().Set("Content-Type", "application/json")
		body := strings.Replace(partitionResponse, "%s", base64.StdEncoding.EncodeToString(imageBytes), 1)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := NewUnstructuredClient(srv.URL+"/", "secret", dir, 5*time.Second, nil)

	elements, err := c.Extract(context.Background(), []byte("%PDF-1.7 doc"))
	require.NoError(t, err)
	require.Len(t, elements, 3)

	assert.Equal(t, []byte("%PDF-1.7 doc"), gotFile)
	assert.Equal(t, []string{"hi_res"}, gotForm["strategy"])
	assert.Equal(t, []string{"true"}, gotForm["pdf_infer_table_structure"])

	assert.Equal(t, models.RawElement{Type: models.ElementTitle, Content: "Annual Report", Page: 1}, elements[0])

	assert.Equal(t, models.ElementTable, elements[1].Type)
	assert.Equal(t, 2, elements[1].Page)
	assert.Equal(t, "<table><tr><td>A</td><td>B</td></tr></table>", elements[1].TableMarkup)

	assert.Equal(t, models.ElementImage, elements[2].Type)
	require.NotEmpty(t, elements[2].ImagePath)
	saved, err := os.ReadFile(elements[2].ImagePath)
	require.NoError(t, err)
	assert.Equal(t, imageBytes, saved)
}

func TestUnstructuredClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "file type not supported", http.StatusUnprocessableEntity)
		}},
		{"json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"detail": "oops"`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewUnstructuredClient(srv.URL, "", "", time.Second, nil)
			elements, err := c.Extract(context.Background(), []byte("%PDF"))
			assert.Nil(t, elements)

			var extractionErr *ExtractionError
			require.True(t, errors.As(err, &extractionErr))
			assert.Equal(t, "unstructured", extractionErr.Backend)
		})
	}
}

func TestUnstructuredClientEmptyDocument(t *testing.T) {
	c := NewUnstructuredClient("http://127.0.0.1:1", "", "", time.Second, nil)
	_, err := c.Extract(context.Background(), nil)

	var extractionErr *ExtractionError
	assert.True(t, errors.As(err, &extractionErr))
}
