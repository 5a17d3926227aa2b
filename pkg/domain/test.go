package domain

// Test is a test method declared in a source file.
type Test struct {
	Location Location `json:"location"`
	Name     string   `json:"name"`
}

// TestSuite is the class declaration a test file contributes.
type TestSuite struct {
	Location Location `json:"location"`
	Name     string   `json:"name"`
	Tests    []Test   `json:"tests,omitempty"`
}

// CountTests returns the number of test methods in the suite.
func (s *TestSuite) CountTests() int {
	return len(s.Tests)
}
