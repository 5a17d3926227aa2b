package domain

// TestFile represents a scanned test file.
// A file contributes at most one suite: the first class declared in it.
type TestFile struct {
	// Language is the programming language of this file.
	Language Language `json:"language"`
	// Path is the file path.
	Path string `json:"path"`
	// Strategy is the name of the strategy that extracted the declarations.
	Strategy string `json:"strategy"`
	// Suite is the class declaration found in this file, nil when there is none.
	Suite *TestSuite `json:"suite,omitempty"`
}

// CountTests returns the total number of tests in this file.
func (f *TestFile) CountTests() int {
	if f.Suite == nil {
		return 0
	}
	return f.Suite.CountTests()
}

// Inventory represents a collection of test files in a project.
type Inventory struct {
	// Files contains all parsed test files.
	Files []TestFile `json:"files"`
	// RootPath is the root directory path of the scanned project.
	RootPath string `json:"rootPath"`
}

// CountTests returns the total number of tests across all files.
func (inv Inventory) CountTests() int {
	count := 0
	for _, f := range inv.Files {
		count += f.CountTests()
	}
	return count
}
