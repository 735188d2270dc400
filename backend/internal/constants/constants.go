package constants

// Graph labels
const (
	// DocumentLabel marks one ingested source file
	DocumentLabel = "PDFDocument"
	// AuthorLabel marks a deduplicated author entity
	AuthorLabel = "Author"
	// KeywordLabel marks a deduplicated keyword entity
	KeywordLabel = "Keyword"
)

// Graph relationship types
const (
	RelAuthoredBy = "AUTHORED_BY"
	RelHasKeyword = "HAS_KEYWORD"
)

// Graph property keys
const (
	// NameProperty is the identity property of Author and Keyword nodes
	NameProperty = "name"

	DocURLProperty        = "url"
	DocInfoProperty       = "info"
	DocMetadataProperty   = "metadata"
	DocTitleProperty      = "title"
	DocRunIDProperty      = "run_id"
	DocIngestedAtProperty = "ingested_at"
)

// Metadata keys read from extracted documents
const (
	InfoAuthorKey = "Author"
	InfoTitleKey  = "Title"

	// XMPNamespacePDF is the prefix under which Adobe PDF schema properties are grouped
	XMPNamespacePDF = "pdf"
	XMPKeywordsKey  = "Keywords"
)
