package journal

import (
	"context"
	"errors"

	"github.com/speedrun-hq/speedrun-minter/pkg/models"
)

// ErrNotFound is returned when no result is stored for a request ID
var ErrNotFound = errors.New("mint result not found")

// Journal remembers the result of mint requests by request ID, so a repeated request
// is answered without sending a second transaction.
type Journal interface {
	Get(ctx context.Context, id string) (*models.MintResult, error)
	Put(ctx context.Context, result *models.MintResult) error
	Close() error
}
