// Package grid maps linear indices onto row-major cell coordinates.
package grid

// GetGridCoords returns the column and row of cell index in a grid cols wide.
func GetGridCoords(index, cols int) (x, y int) {
	if cols <= 0 {
		return 0, 0
	}
	return index % cols, index / cols
}

// CellOrigin returns the pixel position of cell index for cells of the given
// size, offset by the grid's own origin.
func CellOrigin(index, cols, cellW, cellH, originX, originY int) (px, py int) {
	x, y := GetGridCoords(index, cols)
	return originX + x*cellW, originY + y*cellH
}
