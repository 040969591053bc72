package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iago/reports-back/internal/domain"
)

// Store keeps serialized row sets keyed by fingerprint. Errors returned by a
// Store wrap domain.ErrCache and are never fatal to report generation.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Fingerprint derives a stable key for a fetch of the given shape under the
// resolved predicate.
func Fingerprint(shape string, predicate domain.Predicate) (string, error) {
	encoded, err := json.Marshal(predicate)
	if err != nil {
		return "", fmt.Errorf("%w: encode predicate: %w", domain.ErrCache, err)
	}
	hasher := sha256.New()
	hasher.Write([]byte(shape))
	hasher.Write([]byte{'|'})
	hasher.Write(encoded)
	return shape + ":" + hex.EncodeToString(hasher.Sum(nil)), nil
}
