//go:build integration

package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/specvital/explorer/pkg/domain"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// Snapshot is a golden record of a discovered tree.
type Snapshot struct {
	Project    string          `json:"project"`
	SuiteCount int             `json:"suiteCount"`
	TestCount  int             `json:"testCount"`
	Suites     []SnapshotSuite `json:"suites"`
}

// SnapshotSuite records one file suite with paths relative to the project root.
type SnapshotSuite struct {
	Path  string         `json:"path"`
	Label string         `json:"label"`
	Line  int            `json:"line"`
	Tests []SnapshotTest `json:"tests"`
}

// SnapshotTest records one test.
type SnapshotTest struct {
	ID   string `json:"id"`
	Line int    `json:"line"`
}

// SnapshotFromTree creates a Snapshot from a discovered tree.
func SnapshotFromTree(project string, tree *domain.Tree, rootPath string) *Snapshot {
	snapshot := &Snapshot{
		Project:    project,
		SuiteCount: len(tree.Suites()),
		TestCount:  tree.CountTests(),
	}

	for _, suite := range tree.Suites() {
		relPath, err := filepath.Rel(rootPath, suite.ID)
		if err != nil {
			relPath = suite.ID
		}

		s := SnapshotSuite{
			Path:  filepath.ToSlash(relPath),
			Label: suite.Label,
			Line:  suite.Location.Line,
			Tests: []SnapshotTest{},
		}
		for _, test := range suite.Children {
			s.Tests = append(s.Tests, SnapshotTest{ID: test.ID, Line: test.Location.Line})
		}
		snapshot.Suites = append(snapshot.Suites, s)
	}

	return snapshot
}

// SaveSnapshot saves a snapshot to the golden directory.
func SaveSnapshot(snapshot *Snapshot) error {
	goldenDir, err := getGoldenDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(goldenDir, 0755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}

	path := filepath.Join(goldenDir, snapshotFilename(snapshot.Project))
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot loads a snapshot from the golden directory.
func LoadSnapshot(project string) (*Snapshot, error) {
	goldenDir, err := getGoldenDir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(goldenDir, snapshotFilename(project))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot not found: %s (run with -update to create)", path)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// SnapshotDiff represents differences between expected and actual snapshots.
type SnapshotDiff struct {
	SuiteCountDiff int
	TestCountDiff  int
	// OrderChanged is set when both sides hold the same suites in a different order.
	OrderChanged bool
	MissingIDs   []string
	ExtraIDs     []string
	MovedIDs     []string
}

// IsEmpty returns true if there are no differences.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.SuiteCountDiff == 0 &&
		d.TestCountDiff == 0 &&
		!d.OrderChanged &&
		len(d.MissingIDs) == 0 &&
		len(d.ExtraIDs) == 0 &&
		len(d.MovedIDs) == 0
}

// String returns a human-readable diff summary.
func (d *SnapshotDiff) String() string {
	if d.IsEmpty() {
		return "no differences"
	}

	var sb strings.Builder

	if d.SuiteCountDiff != 0 {
		sb.WriteString(fmt.Sprintf("  suite count: %+d\n", d.SuiteCountDiff))
	}
	if d.TestCountDiff != 0 {
		sb.WriteString(fmt.Sprintf("  test count: %+d\n", d.TestCountDiff))
	}
	if d.OrderChanged {
		sb.WriteString("  suite order changed\n")
	}
	writeIDs(&sb, "missing", "-", d.MissingIDs)
	writeIDs(&sb, "extra", "+", d.ExtraIDs)
	writeIDs(&sb, "moved", "~", d.MovedIDs)

	return sb.String()
}

func writeIDs(sb *strings.Builder, title, marker string, ids []string) {
	if len(ids) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("  %s ids (%d):\n", title, len(ids)))
	for i, id := range ids {
		if i == 10 {
			sb.WriteString(fmt.Sprintf("    ... and %d more\n", len(ids)-10))
			break
		}
		sb.WriteString(fmt.Sprintf("    %s %s\n", marker, id))
	}
}

// CompareSnapshots compares an expected snapshot with an actual one.
// Suites are keyed by path and tests by id; a changed line counts as moved.
func CompareSnapshots(expected *Snapshot, actual *Snapshot) *SnapshotDiff {
	diff := &SnapshotDiff{
		SuiteCountDiff: actual.SuiteCount - expected.SuiteCount,
		TestCountDiff:  actual.TestCount - expected.TestCount,
	}

	expectedLines := snapshotLines(expected)
	actualLines := snapshotLines(actual)

	for id, line := range expectedLines {
		actualLine, ok := actualLines[id]
		switch {
		case !ok:
			diff.MissingIDs = append(diff.MissingIDs, id)
		case actualLine != line:
			diff.MovedIDs = append(diff.MovedIDs, id)
		}
	}
	for id := range actualLines {
		if _, ok := expectedLines[id]; !ok {
			diff.ExtraIDs = append(diff.ExtraIDs, id)
		}
	}

	if len(diff.MissingIDs) == 0 && len(diff.ExtraIDs) == 0 && len(expected.Suites) == len(actual.Suites) {
		for i := range expected.Suites {
			if expected.Suites[i].Path != actual.Suites[i].Path {
				diff.OrderChanged = true
				break
			}
		}
	}

	sort.Strings(diff.MissingIDs)
	sort.Strings(diff.ExtraIDs)
	sort.Strings(diff.MovedIDs)

	return diff
}

func snapshotLines(s *Snapshot) map[string]int {
	lines := make(map[string]int)
	for _, suite := range s.Suites {
		lines[suite.Path] = suite.Line
		for _, test := range suite.Tests {
			lines[test.ID] = test.Line
		}
	}
	return lines
}

func getGoldenDir() (string, error) {
	testDataDir, err := getTestDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(testDataDir, "golden"), nil
}

func snapshotFilename(project string) string {
	return unsafePathChars.ReplaceAllString(project, "_") + ".json"
}
