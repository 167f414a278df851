package world

import (
	"math"

	"schlangen.tv/relay/protocol"
)

// CellSize is the edge length of a spatial map cell in world units.
const CellSize = 1000

// maxCellsPerAxis bounds the grid allocation for absurd world sizes. Entities
// beyond the last cell are clamped into it.
const maxCellsPerAxis = 256

// Positioned is anything a Map can hold.
type Positioned interface {
	Pos() protocol.Vec2
}

// Map buckets entities into square cells covering a width x height region.
// Positions outside the region land in the nearest edge cell. Guid uniqueness
// is the caller's concern.
type Map[T Positioned] struct {
	cellSize float64
	cols     int
	rows     int
	cells    [][]T
	count    int
}

// NewMap sizes the grid from the world dimensions. Non-positive sizes yield a
// single cell.
func NewMap[T Positioned](width, height, cellSize float64) *Map[T] {
	if cellSize <= 0 {
		cellSize = CellSize
	}
	cols := cellsFor(width, cellSize)
	rows := cellsFor(height, cellSize)
	return &Map[T]{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]T, cols*rows),
	}
}

func cellsFor(extent, cellSize float64) int {
	if extent <= 0 || math.IsNaN(extent) || math.IsInf(extent, 0) {
		return 1
	}
	n := math.Ceil(extent / cellSize)
	if n > maxCellsPerAxis {
		return maxCellsPerAxis
	}
	return int(n)
}

func (m *Map[T]) cellCoord(v float64, limit int) int {
	if math.IsNaN(v) {
		return 0
	}
	c := math.Floor(v / m.cellSize)
	if c < 0 {
		return 0
	}
	if c >= float64(limit) {
		return limit - 1
	}
	return int(c)
}

func (m *Map[T]) cellIndex(p protocol.Vec2) int {
	return m.cellCoord(p.Y, m.rows)*m.cols + m.cellCoord(p.X, m.cols)
}

// Insert adds e to the cell covering its position.
func (m *Map[T]) Insert(e T) {
	idx := m.cellIndex(e.Pos())
	m.cells[idx] = append(m.cells[idx], e)
	m.count++
}

// RemoveWhere deletes every entity matching pred and reports how many went.
func (m *Map[T]) RemoveWhere(pred func(T) bool) int {
	removed := 0
	for i, cell := range m.cells {
		kept := cell[:0]
		for _, e := range cell {
			if pred(e) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		// Zero the tail so removed entities can be collected.
		var zero T
		for j := len(kept); j < len(cell); j++ {
			cell[j] = zero
		}
		m.cells[i] = kept
	}
	m.count -= removed
	return removed
}

// ForEach visits every entity until fn returns false.
func (m *Map[T]) ForEach(fn func(T) bool) {
	for _, cell := range m.cells {
		for _, e := range cell {
			if !fn(e) {
				return
			}
		}
	}
}

// ForEachIn visits entities in the cells overlapping the rectangle
// [x0,x1] x [y0,y1] until fn returns false. Entities are filtered to the exact
// rectangle.
func (m *Map[T]) ForEachIn(x0, y0, x1, y1 float64, fn func(T) bool) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	cx0, cx1 := m.cellCoord(x0, m.cols), m.cellCoord(x1, m.cols)
	cy0, cy1 := m.cellCoord(y0, m.rows), m.cellCoord(y1, m.rows)

	for cy := cy0; cy <= cy1; cy++ {
		for cx := cx0; cx <= cx1; cx++ {
			for _, e := range m.cells[cy*m.cols+cx] {
				p := e.Pos()
				if p.X < x0 || p.X > x1 || p.Y < y0 || p.Y > y1 {
					continue
				}
				if !fn(e) {
					return
				}
			}
		}
	}
}

// Len is the number of entities held.
func (m *Map[T]) Len() int { return m.count }

// Cells reports the grid dimensions.
func (m *Map[T]) Cells() (cols, rows int) { return m.cols, m.rows }
