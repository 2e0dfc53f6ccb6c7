package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupported is returned when no parser handles a language or file.
var ErrUnsupported = errors.New("unsupported source")

// extensions maps lowercased file extensions to the language that reads them.
var extensions = map[string]Language{
	".c": LanguageC,
	".h": LanguageC,
}

// ParserFactory hands out one shared parser per language.
type ParserFactory struct {
	byLang map[Language]LanguageParser
}

func NewParserFactory() *ParserFactory {
	return &ParserFactory{
		byLang: map[Language]LanguageParser{LanguageC: NewCParser()},
	}
}

func (f *ParserFactory) GetParser(lang Language) (LanguageParser, error) {
	if p, ok := f.byLang[lang]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: language %q", ErrUnsupported, lang)
}

// GetParserByFilePath picks a parser from the file extension alone.
func (f *ParserFactory) GetParserByFilePath(filePath string) (LanguageParser, error) {
	lang := DetectLanguage(filePath)
	if lang == "" {
		return nil, fmt.Errorf("%w: file %s", ErrUnsupported, filePath)
	}
	return f.GetParser(lang)
}

// DetectLanguage returns "" for extensions no parser reads.
func DetectLanguage(filePath string) Language {
	return extensions[strings.ToLower(filepath.Ext(filePath))]
}

// SupportedExtensions lists the handled extensions in sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extensions))
	for ext := range extensions {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

func IsSupportedFile(filePath string) bool {
	return DetectLanguage(filePath) != ""
}
