package models

// FunctionPayload is what the index stores alongside each function vector.
type FunctionPayload struct {
	FilePath  string `json:"file_path"`
	Language  string `json:"language"`
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	CodeHash  string `json:"code_hash"`
	Content   string `json:"content"`
}

// ToMap flattens the payload for the vector store.
func (p FunctionPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"file_path":  p.FilePath,
		"language":   p.Language,
		"name":       p.Name,
		"start_line": p.StartLine,
		"end_line":   p.EndLine,
		"code_hash":  p.CodeHash,
		"content":    p.Content,
	}
}

// FunctionPayloadFromMap is the inverse of ToMap. Missing or mistyped fields
// are left zero.
func FunctionPayloadFromMap(m map[string]interface{}) FunctionPayload {
	return FunctionPayload{
		FilePath:  stringField(m, "file_path"),
		Language:  stringField(m, "language"),
		Name:      stringField(m, "name"),
		StartLine: intField(m, "start_line"),
		EndLine:   intField(m, "end_line"),
		CodeHash:  stringField(m, "code_hash"),
		Content:   stringField(m, "content"),
	}
}

// SearchHit is one similarity search result.
type SearchHit struct {
	FunctionPayload
	Score float32 `json:"score"`
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
