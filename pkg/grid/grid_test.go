package grid

import "testing"

func TestGetGridCoords(t *testing.T) {
	tests := []struct {
		index int
		cols  int
		wantX int
		wantY int
	}{
		// Register panel, 4 columns
		{0, 4, 0, 0},
		{3, 4, 3, 0},
		{4, 4, 0, 1},
		{7, 4, 3, 1},

		// Stack panel, 2 columns
		{0, 2, 0, 0},
		{1, 2, 1, 0},
		{2, 2, 0, 1},
		{25, 2, 1, 12},

		// Degenerate width
		{5, 0, 0, 0},
	}

	for _, tc := range tests {
		gotX, gotY := GetGridCoords(tc.index, tc.cols)
		if gotX != tc.wantX || gotY != tc.wantY {
			t.Errorf("GetGridCoords(%d, %d) = (%d, %d); want (%d, %d)", tc.index, tc.cols, gotX, gotY, tc.wantX, tc.wantY)
		}
	}
}

func TestCellOrigin(t *testing.T) {
	px, py := CellOrigin(5, 4, 100, 16, 10, 200)
	if px != 110 || py != 216 {
		t.Errorf("CellOrigin = (%d, %d); want (110, 216)", px, py)
	}
}
