// Package grid models the jagged pane layout: an ordered list of rows, each
// holding one or more columns. Pane indices are flat and row-major; the
// mapping between flat indices and (row, col) pairs is derived from the
// per-row column counts.
package grid

// Manager tracks the column count of every row. The invariant maintained by
// every mutation: sum(rowCols) == total panes, and no row has zero columns.
type Manager struct {
	rowCols []int
}

// New returns a Manager with rows rows of cols columns each. Non-positive
// arguments are lifted to 1.
func New(rows, cols int) *Manager {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	rc := make([]int, rows)
	for i := range rc {
		rc[i] = cols
	}
	return &Manager{rowCols: rc}
}

// NumRows returns the number of rows.
func (m *Manager) NumRows() int { return len(m.rowCols) }

// RowCols returns the column count of row r, or 0 when out of range.
func (m *Manager) RowCols(r int) int {
	if r < 0 || r >= len(m.rowCols) {
		return 0
	}
	return m.rowCols[r]
}

// TotalPanes returns the number of panes across all rows.
func (m *Manager) TotalPanes() int {
	total := 0
	for _, c := range m.rowCols {
		total += c
	}
	return total
}

// AddRow appends a new row with a single column.
func (m *Manager) AddRow() {
	m.rowCols = append(m.rowCols, 1)
}

// AddColToRow grows row r by one column. Out-of-range rows are ignored.
func (m *Manager) AddColToRow(r int) {
	if r < 0 || r >= len(m.rowCols) {
		return
	}
	m.rowCols[r]++
}

// RemoveColFromRow shrinks row r by one column. Removing the last column
// deletes the row; the return value reports whether that happened.
func (m *Manager) RemoveColFromRow(r int) bool {
	if r < 0 || r >= len(m.rowCols) {
		return false
	}
	if m.rowCols[r] > 1 {
		m.rowCols[r]--
		return false
	}
	m.rowCols = append(m.rowCols[:r], m.rowCols[r+1:]...)
	return true
}

// PanePosition maps a flat pane index to its (row, col) pair.
func (m *Manager) PanePosition(i int) (row, col int, ok bool) {
	if i < 0 {
		return 0, 0, false
	}
	seen := 0
	for r, c := range m.rowCols {
		if i < seen+c {
			return r, i - seen, true
		}
		seen += c
	}
	return 0, 0, false
}

// FlatIndex is the inverse of PanePosition, bounds-checked on both axes.
func (m *Manager) FlatIndex(row, col int) (int, bool) {
	if row < 0 || row >= len(m.rowCols) {
		return 0, false
	}
	if col < 0 || col >= m.rowCols[row] {
		return 0, false
	}
	idx := 0
	for r := 0; r < row; r++ {
		idx += m.rowCols[r]
	}
	return idx + col, true
}

// LayoutParams are the unscaled spacing values from configuration.
type LayoutParams struct {
	OuterPadding   float64
	Gap            float64
	TitleBarHeight float64
}

// PaneLayout is one pane's pixel rectangle plus the height reserved for its
// title bar at the top of the rectangle.
type PaneLayout struct {
	X      float64
	Y      float64
	W      float64
	H      float64
	TitleH float64
}

// ComputeLayout divides the window into per-pane rectangles: equal row
// heights, equal column widths within each row, with outer padding around the
// whole grid and a gap between cells. All spacing values scale with the
// display scale factor.
func (m *Manager) ComputeLayout(windowW, windowH float64, p LayoutParams, scale float64) []PaneLayout {
	outer := p.OuterPadding * scale
	gap := p.Gap * scale
	titleH := p.TitleBarHeight * scale

	rows := len(m.rowCols)
	if rows < 1 {
		rows = 1
	}
	totalW := windowW - 2*outer
	totalH := windowH - 2*outer
	paneH := (totalH - float64(rows-1)*gap) / float64(rows)

	layouts := make([]PaneLayout, 0, m.TotalPanes())
	for r, rowCols := range m.rowCols {
		cols := rowCols
		if cols < 1 {
			cols = 1
		}
		paneW := (totalW - float64(cols-1)*gap) / float64(cols)
		y := outer + float64(r)*(paneH+gap)
		for c := 0; c < rowCols; c++ {
			layouts = append(layouts, PaneLayout{
				X:      outer + float64(c)*(paneW+gap),
				Y:      y,
				W:      paneW,
				H:      paneH,
				TitleH: titleH,
			})
		}
	}
	return layouts
}
