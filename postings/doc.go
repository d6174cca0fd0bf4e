// Package postings defines the seam between a terms dictionary and a
// postings encoder.
//
// A terms dictionary drives a Writer term by term. After each term it asks
// the writer to describe where the term's postings live as a small vector of
// longs plus optional extra bytes (EncodeTerm), stores both next to the term,
// and hands them back to a Reader (DecodeTerm) when the term is looked up.
// The dictionary never interprets the longs. It only stores them as
// variable-length integers, so writers should emit non-negative deltas.
//
// The number of longs per term is fixed per field by Writer.SetField.
// Decoding a vector of a different length is a corruption error.
package postings
