package domain

// Location represents a position in source code.
// Line is 0-based, matching what editors expect for annotations.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}
