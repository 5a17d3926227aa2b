// Package domain defines the core types for test discovery and execution.
package domain

// Language represents a programming language.
type Language string

// Supported languages for test file parsing.
const (
	LanguagePHP Language = "php"
)
