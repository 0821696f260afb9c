package domain

import (
	"bytes"
	"encoding/json"
)

// GroupedMap maps parent category names to their subcategories.
// Keys keep first-seen order; records keep input order.
type GroupedMap struct {
	order  []string
	groups map[string][]Subcategory
}

// NewGroupedMap returns an empty GroupedMap
func NewGroupedMap() *GroupedMap {
	return &GroupedMap{
		order:  make([]string, 0),
		groups: make(map[string][]Subcategory),
	}
}

// Append adds a record under parent, creating the entry on first sight
func (g *GroupedMap) Append(parent string, rec Subcategory) {
	if _, ok := g.groups[parent]; !ok {
		g.order = append(g.order, parent)
	}
	g.groups[parent] = append(g.groups[parent], rec)
}

// Get returns the records of parent
func (g *GroupedMap) Get(parent string) ([]Subcategory, bool) {
	if g == nil {
		return nil, false
	}
	recs, ok := g.groups[parent]
	return recs, ok
}

// Parents returns parent names in first-seen order
func (g *GroupedMap) Parents() []string {
	if g == nil {
		return nil
	}
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

func (g *GroupedMap) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

// MarshalJSON encodes the map as a JSON object with keys in first-seen order
func (g *GroupedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if g != nil {
		for i, parent := range g.order {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(parent)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			recs, err := json.Marshal(g.groups[parent])
			if err != nil {
				return nil, err
			}
			buf.Write(recs)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ColumnSet is an ordered sequence of menu columns
type ColumnSet [][]Subcategory

// Flatten concatenates all columns in order
func (c ColumnSet) Flatten() []Subcategory {
	out := make([]Subcategory, 0)
	for _, col := range c {
		out = append(out, col...)
	}
	return out
}

// ParentColumns is one parent with its derived columns
type ParentColumns struct {
	Parent  string    `json:"parent"`
	Columns ColumnSet `json:"columns"`
}
