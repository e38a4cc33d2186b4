package models

import (
	"fmt"
	"strings"
)

// ElementType is the category tag a partitioner assigns to a raw element
type ElementType string

const (
	ElementTitle         ElementType = "Title"
	ElementNarrativeText ElementType = "NarrativeText"
	ElementListItem      ElementType = "ListItem"
	ElementUncategorized ElementType = "UncategorizedText"
	ElementHeader        ElementType = "Header"
	ElementFooter        ElementType = "Footer"
	ElementPageBreak     ElementType = "PageBreak"
	ElementTable         ElementType = "Table"
	ElementImage         ElementType = "Image"
	ElementPicture       ElementType = "Picture"
)

// IsVisual reports whether the element type is an image-like element
func (t ElementType) IsVisual() bool {
	return t == ElementImage || t == ElementPicture
}

// RawElement is one unit extracted from the source document.
// Page is 1-based; zero means the extractor did not know the page.
type RawElement struct {
	Type        ElementType `json:"type"`
	Content     string      `json:"content"`
	Page        int         `json:"page,omitempty"`
	TableMarkup string      `json:"table_markup,omitempty"`
	ImagePath   string      `json:"image_path,omitempty"`
}

// Kind is the normalized chunk kind
type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
	KindOCR   Kind = "ocr"
)

// Label returns the human-readable prefix used in embedding text
func (k Kind) Label() string {
	switch k {
	case KindTable:
		return "Table"
	case KindOCR:
		return "OCR"
	default:
		return "Text"
	}
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	return k == KindText || k == KindTable || k == KindOCR
}

// EmbeddingText builds the labelled text sent to the embedding provider
func (k Kind) EmbeddingText(content string) string {
	return k.Label() + ": " + content
}

// Chunk is the unified retrievable unit produced by the normalizer
type Chunk struct {
	Kind          Kind   `json:"kind"`
	Page          int    `json:"page,omitempty"`
	Content       string `json:"content"`
	EmbeddingText string `json:"embedding_text"`
	ImagePath     string `json:"image_path,omitempty"`
}

// NewChunk creates a chunk whose embedding text is derived from its kind
func NewChunk(kind Kind, page int, content, imagePath string) Chunk {
	return Chunk{
		Kind:          kind,
		Page:          page,
		Content:       content,
		EmbeddingText: kind.EmbeddingText(content),
		ImagePath:     imagePath,
	}
}

// IndexText returns the text that goes into the index and whether it carries
// any content beyond the kind label.
func (c Chunk) IndexText() (string, bool) {
	text := c.EmbeddingText
	if text == "" {
		text = c.Content
	}
	body := strings.TrimPrefix(text, c.Kind.Label()+":")
	return text, strings.TrimSpace(body) != ""
}

// Metadata is stored next to every index entry
type Metadata struct {
	Page       int    `json:"page,omitempty"`
	Kind       Kind   `json:"kind"`
	RawContent string `json:"raw"`
}

// Citation renders the page/kind reference of a retrieved chunk
func (m Metadata) Citation() string {
	return Citation(m.Page, m.Kind)
}

// Citation formats a page citation, e.g. "Page 4 [table]"
func Citation(page int, kind Kind) string {
	if page <= 0 {
		return fmt.Sprintf("Page unknown [%s]", kind)
	}
	return fmt.Sprintf("Page %d [%s]", page, kind)
}

// Answer is the result of one query
type Answer struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations"`
}
