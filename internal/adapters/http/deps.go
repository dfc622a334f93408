package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/mylocation/internal/adapters/postgres"
	"github.com/samirrijal/mylocation/internal/adapters/valkey"
	"github.com/samirrijal/mylocation/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Fixes    *usecases.FixService
	Sessions *usecases.SessionService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache

	// SpecPath of the OpenAPI document; DefaultSpecPath when empty.
	SpecPath string
}
