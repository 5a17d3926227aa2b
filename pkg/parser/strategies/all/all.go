// Package all imports all parser strategies for side-effect registration.
// Usage: _ "github.com/specvital/explorer/pkg/parser/strategies/all"
package all

import (
	_ "github.com/specvital/explorer/pkg/parser/strategies/ast"
	_ "github.com/specvital/explorer/pkg/parser/strategies/regex"
)
