// Package loaders turns remote resources into tabular datasets.
package loaders

import (
	"context"

	"github.com/sevigo/gwdata/schema"
)

type Loader interface {
	Load(ctx context.Context) (schema.TabularDataset, error)
}

var _ Loader = (*Remote)(nil)
