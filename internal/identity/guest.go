package identity

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/ddowsett/quizroom-go/internal/model"
)

// GuestProvider mints guest identities. The generated id is persisted
// to a local file so repeated runs keep the same identity.
type GuestProvider struct {
	path        string
	displayName string
}

// Ensure GuestProvider implements Provider
var _ Provider = (*GuestProvider)(nil)

// NewGuestProvider creates a guest provider. path is where the id is
// persisted; displayName is how the user appears to other players.
func NewGuestProvider(path, displayName string) *GuestProvider {
	return &GuestProvider{
		path:        path,
		displayName: displayName,
	}
}

// Identify returns the persisted identity, creating one on first use
func (p *GuestProvider) Identify(ctx context.Context) (Identity, error) {
	if data, err := os.ReadFile(p.path); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return Identity{ID: model.PlayerID(id), DisplayName: p.displayName}, nil
		}
	} else if !os.IsNotExist(err) {
		return Identity{}, fmt.Errorf("%w: %v", model.ErrIdentityUnavailable, err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(p.path, []byte(id+"\n"), 0o600); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", model.ErrIdentityUnavailable, err)
	}
	return Identity{ID: model.PlayerID(id), DisplayName: p.displayName}, nil
}

// Static is a fixed identity, useful for tests
type Static struct {
	Identity Identity
}

// Identify returns the fixed identity
func (s *Static) Identify(ctx context.Context) (Identity, error) {
	return s.Identity, nil
}
