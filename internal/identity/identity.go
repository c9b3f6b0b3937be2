package identity

import (
	"context"

	"github.com/ddowsett/quizroom-go/internal/model"
)

// Identity is the opaque pair the core needs to know about a user
type Identity struct {
	ID          model.PlayerID
	DisplayName string
}

// Provider supplies a stable identity for the local user. The core
// makes no further assumptions about where identities come from.
type Provider interface {
	Identify(ctx context.Context) (Identity, error)
}
