package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/agrimandi/agrimarket-backend/pkg/errors"
	"github.com/agrimandi/agrimarket-backend/pkg/redis"
)

// Deduper suppresses identical (buyer, product, qty, price) submissions for a
// short window. The reservation is taken before the settlement transaction
// and released when the transaction aborts, so a failed placement never
// blocks a retry.
type Deduper struct {
	store  redis.IdempotencyStore
	window time.Duration
}

// NewDeduper builds a duplicate-order guard over the shared idempotency store.
func NewDeduper(store redis.IdempotencyStore, window time.Duration) *Deduper {
	return &Deduper{store: store, window: window}
}

// Reserve claims the submission tuple. The returned release func frees the
// claim early; callers invoke it only when the placement did not commit.
func (d *Deduper) Reserve(ctx context.Context, buyerID, productID uuid.UUID, qty int, unitPriceCents int64) (func(), error) {
	key := d.key(buyerID, productID, qty, unitPriceCents)
	ok, err := d.store.SetNX(ctx, key, time.Now().UnixNano(), d.window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve duplicate-order key")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "identical order submitted too recently")
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.store.Del(releaseCtx, key)
	}
	return release, nil
}

func (d *Deduper) key(buyerID, productID uuid.UUID, qty int, unitPriceCents int64) string {
	tuple := fmt.Sprintf("%s|%s|%d|%d", buyerID, productID, qty, unitPriceCents)
	sum := sha256.Sum256([]byte(tuple))
	return d.store.IdempotencyKey("order", hex.EncodeToString(sum[:16]))
}
