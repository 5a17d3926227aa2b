package domain

import "testing"

func TestTestFile_CountTests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file TestFile
		want int
	}{
		{
			name: "should return zero for file without suite",
			file: TestFile{},
			want: 0,
		},
		{
			name: "should return zero for empty suite",
			file: TestFile{Suite: &TestSuite{Name: "EmptyTest"}},
			want: 0,
		},
		{
			name: "should count suite tests",
			file: TestFile{
				Suite: &TestSuite{Tests: []Test{{Name: "test_a"}, {Name: "test_b"}}},
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// When
			got := tt.file.CountTests()

			// Then
			if got != tt.want {
				t.Errorf("CountTests() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInventory_CountTests(t *testing.T) {
	inv := Inventory{
		Files: []TestFile{
			{Suite: &TestSuite{Tests: []Test{{Name: "t1"}, {Name: "t2"}}}},
			{},
			{Suite: &TestSuite{Tests: []Test{{Name: "t3"}}}},
		},
	}

	if got := inv.CountTests(); got != 3 {
		t.Errorf("CountTests() = %d, want 3", got)
	}
}
