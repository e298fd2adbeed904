package schema

import (
	"context"
	"io"
)

// RowParser turns a decoded payload into a TabularDataset.
type RowParser interface {
	Name() string
	Extensions() []string
	ContentTypes() []string
	CanHandle(path string, contentType string) bool
	Parse(ctx context.Context, r io.Reader, opts ParseOptions) (TabularDataset, error)
}

type SamplingMode string

const (
	// SamplingFull keeps every row. It is what reservoir sampling degenerates to
	// when the reservoir is unbounded.
	SamplingFull      SamplingMode = "full"
	SamplingReservoir SamplingMode = "reservoir"
)

// SamplingConfig controls row extraction. Size 0 means unbounded.
type SamplingConfig struct {
	Mode SamplingMode
	Size int
	Seed uint64
}

// Unbounded reports whether all rows are kept.
func (c SamplingConfig) Unbounded() bool {
	return c.Mode != SamplingReservoir || c.Size <= 0
}

// DefaultSampling is the full-scan, unbounded configuration used for remote files.
func DefaultSampling() SamplingConfig {
	return SamplingConfig{Mode: SamplingFull}
}

type HeaderMode string

const (
	HeaderPresent HeaderMode = "present"
	HeaderAbsent  HeaderMode = "absent"
	HeaderAuto    HeaderMode = "auto"
)

type ParseOptions struct {
	Encoding   string
	Sampling   SamplingConfig
	Header     HeaderMode
	Delimiter  rune
	SourceName string
}

// DefaultEncoding is used when no encoding label is given.
const DefaultEncoding = "utf-8"

// WithDefaults fills the zero values of o.
func (o ParseOptions) WithDefaults() ParseOptions {
	if o.Encoding == "" {
		o.Encoding = DefaultEncoding
	}
	if o.Sampling.Mode == "" {
		o.Sampling.Mode = SamplingFull
	}
	if o.Header == "" {
		o.Header = HeaderPresent
	}
	return o
}
