package menu

import "storefront/menu/internal/domain"

const (
	DefaultChunkSize = 4
	DefaultMaxCols   = 3

	// DefaultCapacity is the number of subcategories a parent can show with
	// the default layout. Records past it are not displayed.
	DefaultCapacity = DefaultChunkSize * DefaultMaxCols
)

// Layout controls how a parent's subcategories are split into columns
type Layout struct {
	ChunkSize int `json:"chunk_size"`
	MaxCols   int `json:"max_cols"`
}

// DefaultLayout returns the 4x3 mega-menu layout
func DefaultLayout() Layout {
	return Layout{ChunkSize: DefaultChunkSize, MaxCols: DefaultMaxCols}
}

// Normalize replaces non-positive values with the defaults
func (l Layout) Normalize() Layout {
	if l.ChunkSize <= 0 {
		l.ChunkSize = DefaultChunkSize
	}
	if l.MaxCols <= 0 {
		l.MaxCols = DefaultMaxCols
	}
	return l
}

// Capacity is the maximum number of records the layout displays
func (l Layout) Capacity() int {
	l = l.Normalize()
	return l.ChunkSize * l.MaxCols
}

// Group partitions records by parent category name.
// Records without a parent name are dropped.
func Group(records []domain.Subcategory) *domain.GroupedMap {
	grouped := domain.NewGroupedMap()
	for _, rec := range records {
		parent := rec.ParentName()
		if parent == "" {
			continue
		}
		grouped.Append(parent, rec)
	}
	return grouped
}

// Columnize splits records into at most layout.MaxCols columns of
// layout.ChunkSize records each. Records past the layout capacity are dropped.
func Columnize(records []domain.Subcategory, layout Layout) domain.ColumnSet {
	layout = layout.Normalize()

	columns := make(domain.ColumnSet, 0, layout.MaxCols)
	for start := 0; start < len(records) && len(columns) < layout.MaxCols; start += layout.ChunkSize {
		end := min(start+layout.ChunkSize, len(records))
		col := make([]domain.Subcategory, end-start)
		copy(col, records[start:end])
		columns = append(columns, col)
	}
	return columns
}

// Build groups records and columnizes every parent, in first-seen order
func Build(records []domain.Subcategory, layout Layout) []domain.ParentColumns {
	return BuildFromGroups(Group(records), layout)
}

// BuildFromGroups columnizes every parent of an already grouped map
func BuildFromGroups(grouped *domain.GroupedMap, layout Layout) []domain.ParentColumns {
	out := make([]domain.ParentColumns, 0, grouped.Len())
	for _, parent := range grouped.Parents() {
		recs, _ := grouped.Get(parent)
		out = append(out, domain.ParentColumns{
			Parent:  parent,
			Columns: Columnize(recs, layout),
		})
	}
	return out
}
