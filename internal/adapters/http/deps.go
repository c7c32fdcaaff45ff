package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/breadcrumbs/internal/adapters/valkey"
	"github.com/samirrijal/breadcrumbs/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Trail *usecases.TrailService
	NATS  *nats.Conn
	Cache *valkey.Cache
}
