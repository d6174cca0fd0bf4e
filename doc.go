// Package segcodec is the storage and encoding layer of a full-text search
// index: it turns the postings and per-document values of a segment into
// versioned, checksummed files, and back.
//
// # Quick Start
//
//	dir, _ := store.OpenFSDirectory("./index")
//	codec, _ := segcodec.New(
//	    segcodec.WithPostingsFormatForField("body", "FixedIntBlock"),
//	    segcodec.WithDocValuesFormatForField("tags", "JSON"),
//	)
//
//	err := codec.WriteSegment(ctx, dir, &segcodec.Segment{
//	    Name:      "_0",
//	    DocCount:  len(docs),
//	    Fields:    fields,
//	    Postings:  inverted,
//	    DocValues: values,
//	})
//
//	r, _ := codec.OpenSegment(ctx, dir, "_0")
//	defer r.Close()
//	terms, _ := r.Terms("body")
//
// # Formats
//
// Every field is routed to its own postings and doc values format by the
// per-field dispatchers of package perfield. The choice is stored in the
// field infos, so a segment can be read by any Codec: readers resolve the
// formats by name from the registry of package format. The built-in formats
// register themselves when this package is imported:
//
//	Postings:   VInt, FixedIntBlock, VariableIntBlock, CompressedIntBlock, Memory
//	Doc values: Direct, JSON
//
// # Integrity
//
// Every file starts with a codec header and ends with a footer holding a
// CRC32C checksum. Header and footer mismatches are reported as
// codecerr.ErrCorruptIndex, unsupported versions as
// codecerr.ErrVersionIncompatible. VerifySegment checks every file of a
// segment concurrently.
package segcodec
