package direct

import (
	"bytes"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/segcodec/codecerr"
	"github.com/hupe1980/segcodec/codecutil"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/internal/compression"
	"github.com/hupe1980/segcodec/internal/ioutil"
	"github.com/hupe1980/segcodec/store"
)

type entry struct {
	dvType index.DocValuesType
	offset int64
}

type producer struct {
	data    store.IndexInput
	entries map[int]entry
	maxDoc  int
}

func newProducer(state index.SegmentReadState) (*producer, error) {
	entries, err := readMeta(state)
	if err != nil {
		return nil, err
	}
	data, err := state.Directory.OpenInput(state.FileName(DataExtension), state.Context)
	if err != nil {
		return nil, err
	}
	if _, err := codecutil.CheckHeader(data, dataCodec, versionStart, versionCurrent); err != nil {
		ioutil.CloseWhileHandling(data)
		return nil, err
	}
	if _, err := codecutil.RetrieveChecksum(data.Clone()); err != nil {
		ioutil.CloseWhileHandling(data)
		return nil, err
	}
	dataEnd := data.Length() - codecutil.FooterLength
	for num, e := range entries {
		if e.offset < int64(codecutil.HeaderLength(dataCodec)) || e.offset >= dataEnd {
			ioutil.CloseWhileHandling(data)
			return nil, codecerr.Corruptf(data.Name(), "field %d starts at %d outside the data", num, e.offset)
		}
	}
	return &producer{data: data, entries: entries, maxDoc: state.DocCount}, nil
}

func readMeta(state index.SegmentReadState) (map[int]entry, error) {
	in, err := store.OpenChecksumInput(state.Directory, state.FileName(MetaExtension), state.Context)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	entries, err := readEntries(in, state.FieldInfos)
	if err = codecutil.CheckFooterOnError(in, err); err != nil {
		return nil, err
	}
	return entries, nil
}

func readEntries(in *store.ChecksumIndexInput, infos *index.FieldInfos) (map[int]entry, error) {
	if _, err := codecutil.CheckHeader(in, metaCodec, versionStart, versionCurrent); err != nil {
		return nil, err
	}
	entries := make(map[int]entry)
	for {
		num, err := store.ReadZLong(in)
		if err != nil {
			return nil, err
		}
		if num == -1 {
			return entries, nil
		}
		fi := infos.ByNumber(int(num))
		if fi == nil {
			return nil, codecerr.Corruptf(in.Name(), "unknown field number %d", num)
		}
		if _, dup := entries[fi.Number]; dup {
			return nil, codecerr.Corruptf(in.Name(), "duplicate entry for field %q", fi.Name)
		}
		t, err := in.ReadByte()
		if err != nil {
			return nil, err
		}
		if index.DocValuesType(t) != fi.DocValuesType {
			return nil, codecerr.Corruptf(in.Name(), "field %q stored as %s but declared %s", fi.Name, index.DocValuesType(t), fi.DocValuesType)
		}
		offset, err := store.ReadVLong(in)
		if err != nil {
			return nil, err
		}
		entries[fi.Number] = entry{dvType: index.DocValuesType(t), offset: int64(offset)}
	}
}

// open positions a private clone at fi's data and reads the common prefix.
// It returns a nil input when fi has no values.
func (p *producer) open(fi *index.FieldInfo, want index.DocValuesType) (store.IndexInput, int, *roaring.Bitmap, error) {
	e, ok := p.entries[fi.Number]
	if !ok {
		return nil, 0, nil, nil
	}
	if e.dvType != want {
		return nil, 0, nil, fmt.Errorf("%w: field %q has %s doc values, not %s", codecerr.ErrIllegalArgument, fi.Name, e.dvType, want)
	}
	in := p.data.Clone()
	if err := in.Seek(e.offset); err != nil {
		return nil, 0, nil, err
	}
	maxDoc, err := store.ReadVInt(in)
	if err != nil {
		return nil, 0, nil, err
	}
	if p.maxDoc > 0 && int(maxDoc) != p.maxDoc {
		return nil, 0, nil, codecerr.Corruptf(in.Name(), "field %q has %d slots for %d documents", fi.Name, maxDoc, p.maxDoc)
	}
	raw, err := store.ReadByteSlice(in)
	if err != nil {
		return nil, 0, nil, err
	}
	docs := roaring.New()
	if err := docs.UnmarshalBinary(raw); err != nil {
		return nil, 0, nil, codecerr.NewCorrupt(in.Name(), "invalid docs-with-field bitmap for field "+fi.Name, err)
	}
	if !docs.IsEmpty() && docs.Maximum() >= maxDoc {
		return nil, 0, nil, codecerr.Corruptf(in.Name(), "field %q has a value for doc %d beyond %d documents", fi.Name, docs.Maximum(), maxDoc)
	}
	return in, int(maxDoc), docs, nil
}

func (p *producer) Numeric(fi *index.FieldInfo) (*format.NumericValues, error) {
	in, maxDoc, docs, err := p.open(fi, index.DocValuesNumeric)
	if err != nil || in == nil {
		return nil, err
	}
	defer in.Close()
	block, err := readBlock(in)
	if err != nil {
		return nil, err
	}
	values := &format.NumericValues{DocsWithField: docs, Values: make([]int64, maxDoc)}
	it := docs.Iterator()
	for it.HasNext() {
		if values.Values[it.Next()], err = store.ReadZLong(block); err != nil {
			return nil, err
		}
	}
	if err := checkConsumed(block, fi); err != nil {
		return nil, err
	}
	return values, nil
}

func (p *producer) Binary(fi *index.FieldInfo) (*format.BinaryValues, error) {
	in, maxDoc, docs, err := p.open(fi, index.DocValuesBinary)
	if err != nil || in == nil {
		return nil, err
	}
	defer in.Close()
	block, err := readBlock(in)
	if err != nil {
		return nil, err
	}
	values := &format.BinaryValues{DocsWithField: docs, Values: make([][]byte, maxDoc)}
	it := docs.Iterator()
	for it.HasNext() {
		if values.Values[it.Next()], err = store.ReadByteSlice(block); err != nil {
			return nil, err
		}
	}
	if err := checkConsumed(block, fi); err != nil {
		return nil, err
	}
	return values, nil
}

func (p *producer) Sorted(fi *index.FieldInfo) (*format.SortedValues, error) {
	in, maxDoc, docs, err := p.open(fi, index.DocValuesSorted)
	if err != nil || in == nil {
		return nil, err
	}
	defer in.Close()

	termBlock, err := readBlock(in)
	if err != nil {
		return nil, err
	}
	n, err := store.ReadVInt(termBlock)
	if err != nil {
		return nil, err
	}
	values := &format.SortedValues{DocsWithField: docs, Ords: make([]int, maxDoc)}
	for range n {
		t, err := store.ReadByteSlice(termBlock)
		if err != nil {
			return nil, err
		}
		if k := len(values.Terms); k > 0 && bytes.Compare(t, values.Terms[k-1]) <= 0 {
			return nil, codecerr.Corruptf(in.Name(), "sorted terms of field %q out of order", fi.Name)
		}
		values.Terms = append(values.Terms, t)
	}
	if err := checkConsumed(termBlock, fi); err != nil {
		return nil, err
	}

	ordBlock, err := readBlock(in)
	if err != nil {
		return nil, err
	}
	for i := range values.Ords {
		values.Ords[i] = -1
	}
	it := docs.Iterator()
	for it.HasNext() {
		doc := it.Next()
		ord, err := store.ReadVInt(ordBlock)
		if err != nil {
			return nil, err
		}
		if ord >= n {
			return nil, codecerr.Corruptf(in.Name(), "field %q doc %d has ord %d of %d terms", fi.Name, doc, ord, n)
		}
		values.Ords[doc] = int(ord)
	}
	if err := checkConsumed(ordBlock, fi); err != nil {
		return nil, err
	}
	return values, nil
}

func readBlock(in store.IndexInput) (*store.ByteReader, error) {
	b, err := compression.ReadBlock(in)
	if err != nil {
		return nil, err
	}
	return store.NewByteReader(in.Name(), b), nil
}

func checkConsumed(r *store.ByteReader, fi *index.FieldInfo) error {
	if !r.EOF() {
		return codecerr.Corruptf(r.Name(), "trailing bytes in values of field %q", fi.Name)
	}
	return nil
}

func (p *producer) CheckIntegrity() error {
	_, err := codecutil.ChecksumEntireFile(p.data)
	return err
}

func (p *producer) Close() error { return p.data.Close() }
