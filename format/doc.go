// Package format defines the pluggable postings and doc-values format API
// and the registry formats add themselves to by name.
//
// A postings format is driven field by field, term by term:
//
//	fc, _ := pf.FieldsConsumer(writeState)
//	tc, _ := fc.AddField(fieldInfo)
//	pc, _ := tc.StartTerm(term)
//	pc.StartDoc(doc, freq); pc.AddPosition(pos); pc.FinishDoc()
//	tc.FinishTerm(term, stats)
//	tc.Finish(sumTotalTermFreq, sumDocFreq, docCount)
//	fc.Close()
//
// Fields must arrive in name order and terms in byte order. WriteFields does
// that bookkeeping for an in-memory inverted field.
package format
