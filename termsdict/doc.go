// Package termsdict is a linear, sorted terms dictionary on top of the
// postings metadata contract.
//
// Each field's terms are stored in byte order in a single .tdt file,
// followed by a field directory and the footer:
//
//	Header, PostingsHeader, Field*, Directory, DirStart(int64), Footer
//	Field     -> Term^numTerms
//	Term      -> Bytes, DocFreq(vInt), [TTF-DocFreq(vLong)], Long^longsSize(vLong), Extra
//	Directory -> NumFields(vInt), (Number, NumTerms, StartFP, SumTTF(zLong), SumDF, DocCount, LongsSize)^NumFields
//
// The first term of every field is encoded absolutely, later ones as
// deltas against their predecessor. Readers load every term of every field
// into memory when the dictionary is opened.
package termsdict
