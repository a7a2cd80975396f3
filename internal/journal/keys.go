package journal

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/Rajchodisetti/chaingate/internal/admission"
)

// IdempotencyKey identifies a request submitted at a given second, so a replayed or
// retried submission maps to the same key.
func IdempotencyKey(req admission.Request, at time.Time) string {
	data := fmt.Sprintf("%s-%s-%s-%s-%d", req.SymbolID, req.Type, req.Quantity.String(), req.LimitPrice.String(), at.Unix())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8])
}
