package workcache

import "context"

// Record is the persisted state of one preparation.
type Record struct {
	Tag               string
	DeclaredInputs    []Entry
	DiscoveredInputs  []Entry
	DiscoveredOutputs []Entry
	Result            []byte
}

// Store persists preparation records.
type Store interface {
	Load(ctx context.Context, tag string) (*Record, bool, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, tag string) error
	Tags(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
