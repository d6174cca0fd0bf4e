// Package testutil generates reproducible index data and checks that a
// postings or doc values format reads back exactly what it wrote.
//
//	rng := testutil.NewRNG(seed)
//	field := rng.InvertedField(fi, maxDoc, numTerms)
//	prices := rng.NumericValues(maxDoc, 0.7)
//
//	testutil.CheckPostingsFormat(t, memory.New())
//	testutil.CheckDocValuesFormat(t, direct.New())
package testutil
