package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// ConfirmationTTL is how long an issued confirmation token stays valid
	ConfirmationTTL = 5 * time.Minute

	confirmKeyPrefix = "confirm:"
)

// Confirmer issues and resolves single-use confirmation tokens for
// destructive actions
type Confirmer interface {
	Request(ctx context.Context, owner, action string, resourceID uuid.UUID) (string, error)
	Resolve(ctx context.Context, token, owner, action string, resourceID uuid.UUID) (bool, error)
}

// ConfirmationService implements the two-step confirmation protocol for
// destructive actions: the caller requests confirmation and receives a
// single-use token, then presents the token with the destructive request.
// Tokens are bound to owner, action and resource, expire after
// ConfirmationTTL, and are consumed atomically on resolution.
type ConfirmationService struct {
	client *redis.Client
}

// NewConfirmationService creates a confirmation service backed by Redis
func NewConfirmationService(client *redis.Client) *ConfirmationService {
	return &ConfirmationService{client: client}
}

var _ Confirmer = (*ConfirmationService)(nil)

// Request issues a confirmation token for the given owner, action and
// resource id.
func (s *ConfirmationService) Request(ctx context.Context, owner, action string, resourceID uuid.UUID) (string, error) {
	token := uuid.NewString()
	value := bindingValue(owner, action, resourceID)

	if err := s.client.Set(ctx, confirmKeyPrefix+token, value, ConfirmationTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store confirmation token: %w", err)
	}

	return token, nil
}

// Resolve consumes a token and reports whether it confirms the given owner,
// action and resource. A wrong binding does not consume the token for its
// rightful holder; a matching one is deleted so it cannot be replayed.
func (s *ConfirmationService) Resolve(ctx context.Context, token, owner, action string, resourceID uuid.UUID) (bool, error) {
	if token == "" {
		return false, nil
	}

	key := confirmKeyPrefix + token
	stored, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up confirmation token: %w", err)
	}

	if stored != bindingValue(owner, action, resourceID) {
		return false, nil
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return false, fmt.Errorf("failed to consume confirmation token: %w", err)
	}

	return true, nil
}

func bindingValue(owner, action string, resourceID uuid.UUID) string {
	return fmt.Sprintf("%s|%s|%s", owner, action, resourceID)
}
