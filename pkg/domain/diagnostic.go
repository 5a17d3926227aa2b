package domain

// Diagnostic locates a test failure in source.
type Diagnostic struct {
	File    string `json:"file"`
	Line    int    `json:"line"` // 0-based
	Message string `json:"message"`
}
