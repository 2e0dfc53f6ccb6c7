package parser

// FunctionRecord is one extracted C function definition.
type FunctionRecord struct {
	Name      string `json:"name"`       // Declared identifier, case preserved
	Code      string `json:"code"`       // Verbatim source from the first specifier through the closing brace
	StartLine int    `json:"start_line"` // Line of the first byte (1-indexed)
	EndLine   int    `json:"end_line"`   // Line of the closing brace (1-indexed)
	StartByte int    `json:"start_byte"` // Starting byte offset in file
	EndByte   int    `json:"end_byte"`   // Ending byte offset in file (exclusive)
}

// SourceRegion is the half-open byte range [Start, End) of one definition and
// the line Start sits on. It only lives for the duration of one extraction.
type SourceRegion struct {
	Start int
	End   int
	Line  int
}

// LanguageParser defines the interface for language-specific parsers
type LanguageParser interface {
	// ExtractFunctions parses source code and extracts function definitions
	ExtractFunctions(filePath string, code []byte) ([]FunctionRecord, error)

	// Language returns the language name
	Language() string
}

// Language represents supported programming languages
type Language string

const (
	LanguageC Language = "c"
)
