package parser

import (
	"context"
	"fmt"

	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/source"
)

// TestID returns the qualified id of a test method.
func TestID(suiteLabel, method string) string {
	return suiteLabel + "::" + method
}

// BuildTree assembles a fresh tree with one suite per file, in inventory order,
// each holding its tests in source order. Suite ids are file paths.
// A declaration whose id is already taken is dropped and reported in the
// returned errors so lookups by id stay unambiguous.
func BuildTree(inv *domain.Inventory) (*domain.Tree, []ScanError) {
	tree := domain.NewTree()
	if inv == nil {
		return tree, nil
	}

	var errs []ScanError
	seen := make(map[string]bool)

	for _, file := range inv.Files {
		if file.Suite == nil {
			continue
		}
		if seen[file.Path] {
			errs = append(errs, ScanError{
				Err:   fmt.Errorf("duplicate suite id %q", file.Path),
				Path:  file.Path,
				Phase: PhaseBuild,
			})
			continue
		}
		seen[file.Path] = true

		suiteLoc := file.Suite.Location
		suite := domain.NewSuite(file.Path, file.Suite.Name, &suiteLoc)

		for _, test := range file.Suite.Tests {
			id := TestID(file.Suite.Name, test.Name)
			if seen[id] {
				errs = append(errs, ScanError{
					Err:   fmt.Errorf("duplicate test id %q", id),
					Path:  file.Path,
					Phase: PhaseBuild,
				})
				continue
			}
			seen[id] = true

			testLoc := test.Location
			suite.AddChild(domain.NewTest(id, test.Name, &testLoc))
		}

		tree.Root.AddChild(suite)
	}

	return tree, errs
}

// Discover scans src and builds a tree from the result.
// Build errors are appended to ScanResult.Errors.
func (s *Scanner) Discover(ctx context.Context, src source.Source) (*domain.Tree, *ScanResult, error) {
	result, err := s.Scan(ctx, src)
	if err != nil {
		return nil, result, err
	}

	tree, buildErrs := BuildTree(result.Inventory)
	result.Errors = append(result.Errors, buildErrs...)

	return tree, result, nil
}
