// Package all registers every built-in postings and doc values format.
//
//	import _ "github.com/hupe1980/segcodec/formats/all"
package all

import (
	_ "github.com/hupe1980/segcodec/formats/blockpf"
	_ "github.com/hupe1980/segcodec/formats/direct"
	_ "github.com/hupe1980/segcodec/formats/jsondv"
	_ "github.com/hupe1980/segcodec/formats/memory"
	_ "github.com/hupe1980/segcodec/formats/vintpf"
)
