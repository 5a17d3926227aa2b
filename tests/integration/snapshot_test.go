//go:build integration

package integration

import (
	"strings"
	"testing"

	"github.com/specvital/explorer/pkg/domain"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Project:    "sample",
		SuiteCount: 2,
		TestCount:  3,
		Suites: []SnapshotSuite{
			{Path: "tests/CartTest.php", Label: "CartTest", Line: 4, Tests: []SnapshotTest{
				{ID: "CartTest::test_add", Line: 6},
				{ID: "CartTest::test_remove", Line: 10},
			}},
			{Path: "tests/OrderTest.php", Label: "OrderTest", Line: 2, Tests: []SnapshotTest{
				{ID: "OrderTest::test_total", Line: 4},
			}},
		},
	}
}

func TestSnapshotDiff_Empty(t *testing.T) {
	diff := CompareSnapshots(sampleSnapshot(), sampleSnapshot())

	if !diff.IsEmpty() {
		t.Errorf("expected no differences, got:\n%s", diff)
	}
	if diff.String() != "no differences" {
		t.Errorf("unexpected diff output %q", diff.String())
	}
}

func TestSnapshotDiff_MissingAndExtra(t *testing.T) {
	actual := sampleSnapshot()
	actual.Suites[0].Tests[1] = SnapshotTest{ID: "CartTest::test_clear", Line: 10}

	diff := CompareSnapshots(sampleSnapshot(), actual)

	if diff.IsEmpty() {
		t.Fatal("expected differences")
	}
	if len(diff.MissingIDs) != 1 || diff.MissingIDs[0] != "CartTest::test_remove" {
		t.Errorf("unexpected missing ids %v", diff.MissingIDs)
	}
	if len(diff.ExtraIDs) != 1 || diff.ExtraIDs[0] != "CartTest::test_clear" {
		t.Errorf("unexpected extra ids %v", diff.ExtraIDs)
	}
	if !strings.Contains(diff.String(), "- CartTest::test_remove") {
		t.Errorf("diff output lacks missing id:\n%s", diff)
	}
}

func TestSnapshotDiff_Moved(t *testing.T) {
	actual := sampleSnapshot()
	actual.Suites[1].Tests[0].Line = 5

	diff := CompareSnapshots(sampleSnapshot(), actual)

	if len(diff.MovedIDs) != 1 || diff.MovedIDs[0] != "OrderTest::test_total" {
		t.Errorf("unexpected moved ids %v", diff.MovedIDs)
	}
}

func TestSnapshotDiff_Order(t *testing.T) {
	actual := sampleSnapshot()
	actual.Suites[0], actual.Suites[1] = actual.Suites[1], actual.Suites[0]

	diff := CompareSnapshots(sampleSnapshot(), actual)

	if !diff.OrderChanged {
		t.Error("expected order change")
	}
}

func TestSnapshotDiff_Counts(t *testing.T) {
	actual := sampleSnapshot()
	actual.TestCount = 13

	diff := CompareSnapshots(sampleSnapshot(), actual)

	if diff.TestCountDiff != 10 {
		t.Errorf("expected test count diff 10, got %d", diff.TestCountDiff)
	}
	if !strings.Contains(diff.String(), "test count: +10") {
		t.Errorf("unexpected diff output:\n%s", diff)
	}
}

func TestSnapshotFromTree(t *testing.T) {
	tree := domain.NewTree()
	suite := domain.NewSuite("/project/tests/CartTest.php", "CartTest", &domain.Location{File: "/project/tests/CartTest.php", Line: 4})
	suite.AddChild(domain.NewTest("CartTest::test_add", "test_add", &domain.Location{File: "/project/tests/CartTest.php", Line: 6}))
	tree.Root.AddChild(suite)

	snapshot := SnapshotFromTree("sample", tree, "/project")

	if snapshot.SuiteCount != 1 || snapshot.TestCount != 1 {
		t.Fatalf("unexpected counts %d/%d", snapshot.SuiteCount, snapshot.TestCount)
	}
	if snapshot.Suites[0].Path != "tests/CartTest.php" {
		t.Errorf("expected relative path, got %s", snapshot.Suites[0].Path)
	}
	if snapshot.Suites[0].Tests[0].Line != 6 {
		t.Errorf("expected line 6, got %d", snapshot.Suites[0].Tests[0].Line)
	}
}

func TestLoadProjects(t *testing.T) {
	config, err := LoadProjects()
	if err != nil {
		t.Fatalf("load projects.yaml: %v", err)
	}
	for _, p := range config.Projects {
		root, err := p.Root()
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasSuffix(root, p.Dir) {
			t.Errorf("unexpected root %s for %s", root, p.Name)
		}
	}
}
