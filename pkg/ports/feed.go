package ports

import (
	"context"

	"github.com/aretw0/tops/pkg/domain"
)

// LogFeed is the log side of the feed endpoint.
type LogFeed interface {
	// Configure tells the feed which records the session wants.
	Configure(ctx context.Context, uid string, sourceFilter string, minLevel domain.Level) error

	// Records returns the records currently buffered by the feed for the session.
	Records(ctx context.Context, uid string) ([]domain.LogRecord, error)
}

// ChannelFeed is the archiver side of the feed endpoint.
type ChannelFeed interface {
	// Subscribe registers a channel name pattern and returns the matching channel names.
	Subscribe(ctx context.Context, uid string, pattern string) ([]string, error)

	// Values returns the current values of the subscribed channels, in subscription order.
	Values(ctx context.Context, uid string) ([]string, error)
}
