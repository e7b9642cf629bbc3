package gmail

import "context"

// Client is the narrow Gmail surface required by mailsorter. Every method
// is a network round trip and honours ctx cancellation.
type Client interface {
	ListRecent(ctx context.Context, limit int) ([]MessageID, error)
	GetMetadata(ctx context.Context, id MessageID, headers []string) (MessageMeta, error)
	Modify(ctx context.Context, id MessageID, ops ModifyOps) error
	ListLabels(ctx context.Context) ([]Label, error)
	CreateLabel(ctx context.Context, name string) (Label, error)
	Profile(ctx context.Context) (string, error)
}
