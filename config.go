package segcodec

import (
	"fmt"

	"github.com/hupe1980/segcodec/config"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/formats/blockpf"
	"github.com/hupe1980/segcodec/formats/direct"
	"github.com/hupe1980/segcodec/formats/jsondv"
	"github.com/hupe1980/segcodec/formats/memory"
	"github.com/hupe1980/segcodec/internal/jsoncodec"
)

// FromConfig builds a Codec from cfg. Built-in formats are instantiated with
// the parameters of cfg; other names are looked up in the registry. opts are
// applied after the configuration and take precedence.
func FromConfig(cfg *config.Config, opts ...Option) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := configBuilder{
		cfg:       cfg,
		postings:  make(map[string]format.PostingsFormat),
		docValues: make(map[string]format.DocValuesFormat),
	}

	pf, err := b.postingsFormat(cfg.Postings.Default)
	if err != nil {
		return nil, err
	}
	dvf, err := b.docValuesFormat(cfg.DocValues.Default)
	if err != nil {
		return nil, err
	}

	level, _ := cfg.Logging.SlogLevel()
	logger := NewTextLogger(level)
	if cfg.Logging.JSON() {
		logger = NewJSONLogger(level)
	}

	all := []Option{
		WithLogger(logger),
		WithMaxWriteBytesPerSec(cfg.Write.MaxBytesPerSec),
		WithCustomPostingsFormat(pf),
		WithCustomDocValuesFormat(dvf),
	}
	for field, name := range cfg.Postings.Fields {
		f, err := b.postingsFormat(name)
		if err != nil {
			return nil, fmt.Errorf("postings format of field %q: %w", field, err)
		}
		all = append(all, WithCustomPostingsFormat(f, field))
	}
	for field, name := range cfg.DocValues.Fields {
		f, err := b.docValuesFormat(name)
		if err != nil {
			return nil, fmt.Errorf("doc values format of field %q: %w", field, err)
		}
		all = append(all, WithCustomDocValuesFormat(f, field))
	}
	return New(append(all, opts...)...)
}

// configBuilder creates at most one instance per format name, so fields
// configured with the same name share files.
type configBuilder struct {
	cfg       *config.Config
	postings  map[string]format.PostingsFormat
	docValues map[string]format.DocValuesFormat
}

func (b *configBuilder) postingsFormat(name string) (format.PostingsFormat, error) {
	if f, ok := b.postings[name]; ok {
		return f, nil
	}
	p := b.cfg.Postings
	ct, _ := p.CompressionType()

	var (
		f   format.PostingsFormat
		err error
	)
	switch name {
	case blockpf.FixedName:
		f, err = blockpf.NewFixed(p.BlockSize)
	case blockpf.VariableName:
		f = blockpf.NewVariable(p.BaseBlockSize)
	case blockpf.CompressedName:
		f, err = blockpf.NewCompressed(ct, p.BlockSize)
	case memory.Name:
		f = &memory.Format{Compression: ct}
	default:
		f, err = format.LookupPostingsFormat(name)
	}
	if err != nil {
		return nil, err
	}
	b.postings[name] = f
	return f, nil
}

func (b *configBuilder) docValuesFormat(name string) (format.DocValuesFormat, error) {
	if f, ok := b.docValues[name]; ok {
		return f, nil
	}
	d := b.cfg.DocValues

	var (
		f   format.DocValuesFormat
		err error
	)
	switch name {
	case direct.Name:
		ct, _ := d.CompressionType()
		f = &direct.Format{Compression: ct}
	case jsondv.Name:
		codec, _ := jsoncodec.ByName(d.JSONCodec)
		f = &jsondv.Format{Codec: codec}
	default:
		f, err = format.LookupDocValuesFormat(name)
	}
	if err != nil {
		return nil, err
	}
	b.docValues[name] = f
	return f, nil
}
