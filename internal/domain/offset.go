package domain

import (
	"sort"
	"unicode/utf8"
)

// offsetPair is a code point boundary expressed in both index spaces.
type offsetPair struct {
	byteOffset int
	utf16Index int
}

// OffsetMapper converts facet byte offsets into indexes that are always valid
// slice boundaries of the text. Facet offsets come from clients that may count
// differently, so an offset landing inside a multi-byte code point is moved
// forward to the next boundary rather than trusted.
type OffsetMapper struct {
	text  string
	table []offsetPair
}

// NewOffsetMapper builds the boundary table for text in a single pass. The
// table holds one entry per code point start plus a final entry for the end
// of the text.
func NewOffsetMapper(text string) *OffsetMapper {
	table := make([]offsetPair, 0, len(text)+1)
	units := 0
	for i, r := range text {
		table = append(table, offsetPair{byteOffset: i, utf16Index: units})
		if r >= 0x10000 && r <= utf8.MaxRune {
			units += 2
		} else {
			units++
		}
	}
	table = append(table, offsetPair{byteOffset: len(text), utf16Index: units})
	return &OffsetMapper{text: text, table: table}
}

// lookup returns the first boundary at or after b.
func (m *OffsetMapper) lookup(b int) offsetPair {
	if b <= 0 {
		return m.table[0]
	}
	i := sort.Search(len(m.table), func(i int) bool {
		return m.table[i].byteOffset >= b
	})
	if i == len(m.table) {
		return m.table[len(m.table)-1]
	}
	return m.table[i]
}

// SliceIndex returns the smallest code point boundary that is >= b, clamped to
// [0, len(text)]. The result can always be used to slice the text.
func (m *OffsetMapper) SliceIndex(b int) int {
	return m.lookup(b).byteOffset
}

// UTF16Index returns the UTF-16 code unit index of SliceIndex(b). Characters
// outside the BMP count as two units and are never split.
func (m *OffsetMapper) UTF16Index(b int) int {
	return m.lookup(b).utf16Index
}

// Range maps a byte range onto slice boundaries. The end is never before the
// start.
func (m *OffsetMapper) Range(start, end int) (int, int) {
	s := m.SliceIndex(start)
	e := m.SliceIndex(end)
	if e < s {
		e = s
	}
	return s, e
}

// Len returns the byte length of the mapped text.
func (m *OffsetMapper) Len() int {
	return len(m.text)
}
