package document

import (
	"sort"
	"strings"

	"docgraph/backend/internal/constants"
)

// Info is a document's info dictionary (Author, Title, Producer, ...)
type Info map[string]string

// Author returns the primary author verbatim, or "" when absent
func (i Info) Author() string {
	return i[constants.InfoAuthorKey]
}

// Title returns the document title, or "" when absent
func (i Info) Title() string {
	return i[constants.InfoTitleKey]
}

// Metadata is embedded XMP metadata grouped by namespace prefix, e.g.
// {"pdf": {"Keywords": "a, b"}, "dc": {"creator": ["Jane Doe"]}}.
// Values are string, []string (rdf:Bag/rdf:Seq) or map[string]string (rdf:Alt).
type Metadata map[string]map[string]any

// Field returns a property as text. Lists are joined with ", " and language
// alternatives resolve to x-default when present.
func (m Metadata) Field(namespace, key string) string {
	block, ok := m[namespace]
	if !ok {
		return ""
	}
	switch v := block[key].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]string:
		if def, ok := v["x-default"]; ok {
			return def
		}
		langs := make([]string, 0, len(v))
		for lang := range v {
			langs = append(langs, lang)
		}
		if len(langs) > 0 {
			sort.Strings(langs)
			return v[langs[0]]
		}
	}
	return ""
}

// Keywords returns the raw, unnormalized keyword field
func (m Metadata) Keywords() string {
	return m.Field(constants.XMPNamespacePDF, constants.XMPKeywordsKey)
}

// Extracted is what an extractor returns for one document.
// Either block may be nil.
type Extracted struct {
	Info     Info
	Metadata Metadata
}

// Document is one fetched document ready for ingestion
type Document struct {
	SourceLocation string
	Info           Info
	Metadata       Metadata
	Content        []byte
}
