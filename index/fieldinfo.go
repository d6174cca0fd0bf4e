package index

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/hupe1980/segcodec/codecerr"
)

// IndexOptions describes what a field's postings record.
type IndexOptions uint8

const (
	IndexOptionsNone IndexOptions = iota
	IndexOptionsDocs
	IndexOptionsDocsAndFreqs
	IndexOptionsDocsAndFreqsAndPositions
)

func (o IndexOptions) String() string {
	switch o {
	case IndexOptionsNone:
		return "none"
	case IndexOptionsDocs:
		return "docs"
	case IndexOptionsDocsAndFreqs:
		return "docs_and_freqs"
	case IndexOptionsDocsAndFreqsAndPositions:
		return "docs_and_freqs_and_positions"
	default:
		return fmt.Sprintf("IndexOptions(%d)", uint8(o))
	}
}

// HasFreqs reports whether term frequencies are recorded.
func (o IndexOptions) HasFreqs() bool { return o >= IndexOptionsDocsAndFreqs }

// HasPositions reports whether positions are recorded.
func (o IndexOptions) HasPositions() bool { return o >= IndexOptionsDocsAndFreqsAndPositions }

// DocValuesType is the kind of per-document values a field carries.
type DocValuesType uint8

const (
	DocValuesNone DocValuesType = iota
	DocValuesNumeric
	DocValuesBinary
	DocValuesSorted
)

func (t DocValuesType) String() string {
	switch t {
	case DocValuesNone:
		return "none"
	case DocValuesNumeric:
		return "numeric"
	case DocValuesBinary:
		return "binary"
	case DocValuesSorted:
		return "sorted"
	default:
		return fmt.Sprintf("DocValuesType(%d)", uint8(t))
	}
}

// FieldInfo describes one field of a segment.
//
// The attribute bag is a loosely typed string map. Formats store routing and
// configuration details in it; keys a reader does not know are kept as-is.
type FieldInfo struct {
	Name          string
	Number        int
	IndexOptions  IndexOptions
	DocValuesType DocValuesType
	// DocValuesGen is -1 until the field's doc values are first written, then
	// the generation they were written under.
	DocValuesGen int64

	mu         sync.RWMutex
	attributes map[string]string
}

// NewFieldInfo returns a field with an empty attribute bag.
func NewFieldInfo(name string, number int, opts IndexOptions, dvType DocValuesType) *FieldInfo {
	return &FieldInfo{
		Name:          name,
		Number:        number,
		IndexOptions:  opts,
		DocValuesType: dvType,
		DocValuesGen:  -1,
		attributes:    make(map[string]string),
	}
}

// Attribute returns the value stored under key, or "" and false.
func (fi *FieldInfo) Attribute(key string) (string, bool) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	v, ok := fi.attributes[key]
	return v, ok
}

// PutAttribute stores value under key and returns the previous value.
func (fi *FieldInfo) PutAttribute(key, value string) (string, bool) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	if fi.attributes == nil {
		fi.attributes = make(map[string]string)
	}
	prev, ok := fi.attributes[key]
	fi.attributes[key] = value
	return prev, ok
}

// Attributes returns a copy of the attribute bag.
func (fi *FieldInfo) Attributes() map[string]string {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return maps.Clone(fi.attributes)
}

func (fi *FieldInfo) setAttributes(m map[string]string) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.attributes = m
}

// Clone returns a deep copy of fi.
func (fi *FieldInfo) Clone() *FieldInfo {
	c := &FieldInfo{
		Name:          fi.Name,
		Number:        fi.Number,
		IndexOptions:  fi.IndexOptions,
		DocValuesType: fi.DocValuesType,
		DocValuesGen:  fi.DocValuesGen,
	}
	c.attributes = fi.Attributes()
	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}
	return c
}

// FieldInfos is the ordered set of fields in a segment.
type FieldInfos struct {
	byNumber []*FieldInfo
	byName   map[string]*FieldInfo
}

// NewFieldInfos returns a collection of infos. Names and numbers must be unique.
func NewFieldInfos(infos ...*FieldInfo) (*FieldInfos, error) {
	fis := &FieldInfos{byName: make(map[string]*FieldInfo, len(infos))}
	for _, fi := range infos {
		if err := fis.Add(fi); err != nil {
			return nil, err
		}
	}
	return fis, nil
}

// Add inserts fi. It fails on a duplicate name or number.
func (fis *FieldInfos) Add(fi *FieldInfo) error {
	if fi.Number < 0 {
		return fmt.Errorf("%w: field %q has negative number %d", codecerr.ErrIllegalArgument, fi.Name, fi.Number)
	}
	if _, ok := fis.byName[fi.Name]; ok {
		return fmt.Errorf("%w: duplicate field name %q", codecerr.ErrIllegalArgument, fi.Name)
	}
	if other := fis.ByNumber(fi.Number); other != nil {
		return fmt.Errorf("%w: field number %d used by %q and %q", codecerr.ErrIllegalArgument, fi.Number, other.Name, fi.Name)
	}
	if fis.byName == nil {
		fis.byName = make(map[string]*FieldInfo)
	}
	fis.byName[fi.Name] = fi
	i, _ := slices.BinarySearchFunc(fis.byNumber, fi.Number, func(a *FieldInfo, n int) int { return a.Number - n })
	fis.byNumber = slices.Insert(fis.byNumber, i, fi)
	return nil
}

// ByName returns the field called name, or nil.
func (fis *FieldInfos) ByName(name string) *FieldInfo { return fis.byName[name] }

// ByNumber returns the field numbered n, or nil.
func (fis *FieldInfos) ByNumber(n int) *FieldInfo {
	i, ok := slices.BinarySearchFunc(fis.byNumber, n, func(a *FieldInfo, n int) int { return a.Number - n })
	if !ok {
		return nil
	}
	return fis.byNumber[i]
}

// All returns the fields in number order.
func (fis *FieldInfos) All() []*FieldInfo { return slices.Clone(fis.byNumber) }

// Len returns the number of fields.
func (fis *FieldInfos) Len() int { return len(fis.byNumber) }

// HasPostings reports whether any field is indexed.
func (fis *FieldInfos) HasPostings() bool {
	for _, fi := range fis.byNumber {
		if fi.IndexOptions != IndexOptionsNone {
			return true
		}
	}
	return false
}

// HasDocValues reports whether any field carries doc values.
func (fis *FieldInfos) HasDocValues() bool {
	for _, fi := range fis.byNumber {
		if fi.DocValuesType != DocValuesNone {
			return true
		}
	}
	return false
}
