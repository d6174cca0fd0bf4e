package format

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownFormat is returned when looking up a name nobody registered.
var ErrUnknownFormat = errors.New("format: unknown format")

var (
	registryMu       sync.RWMutex
	postingsFormats  = map[string]PostingsFormat{}
	docValuesFormats = map[string]DocValuesFormat{}
)

// RegisterPostingsFormat makes f available under f.Name().
//
// Formats should call this from an init function. It panics on a duplicate name.
func RegisterPostingsFormat(f PostingsFormat) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := postingsFormats[f.Name()]; dup {
		panic(fmt.Sprintf("format: postings format %q registered twice", f.Name()))
	}
	postingsFormats[f.Name()] = f
}

// LookupPostingsFormat returns the postings format registered as name.
func LookupPostingsFormat(name string) (PostingsFormat, error) {
	registryMu.RLock()
	f, ok := postingsFormats[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: postings format %q (registered: %v)", ErrUnknownFormat, name, PostingsFormats())
	}
	return f, nil
}

// PostingsFormats returns the registered postings format names, sorted.
func PostingsFormats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(postingsFormats))
	for name := range postingsFormats {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RegisterDocValuesFormat makes f available under f.Name().
//
// Formats should call this from an init function. It panics on a duplicate name.
func RegisterDocValuesFormat(f DocValuesFormat) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := docValuesFormats[f.Name()]; dup {
		panic(fmt.Sprintf("format: doc values format %q registered twice", f.Name()))
	}
	docValuesFormats[f.Name()] = f
}

// LookupDocValuesFormat returns the doc values format registered as name.
func LookupDocValuesFormat(name string) (DocValuesFormat, error) {
	registryMu.RLock()
	f, ok := docValuesFormats[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: doc values format %q (registered: %v)", ErrUnknownFormat, name, DocValuesFormats())
	}
	return f, nil
}

// DocValuesFormats returns the registered doc values format names, sorted.
func DocValuesFormats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(docValuesFormats))
	for name := range docValuesFormats {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
