package http

import (
	"github.com/guildgate/internal/application/verification"
	"github.com/guildgate/internal/transport/http/handler"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Verification verification.Service
	Status       handler.StatusReporter
}
