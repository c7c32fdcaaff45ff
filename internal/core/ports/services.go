package ports

import (
	"context"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSample(ctx context.Context, sample *domain.Sample) error
	PublishTrailChange(ctx context.Context, event *domain.ChangeEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeSamples(ctx context.Context, sourceID string, handler func(ctx context.Context, sample *domain.Sample) error) error
}

// CacheService provides read-through caching of query responses.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// SampleSource produces position fixes for a trail (GPX files, GTFS-RT feeds).
type SampleSource interface {
	Samples(ctx context.Context) ([]domain.Sample, error)
}
