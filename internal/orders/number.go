package orders

import (
	"crypto/rand"
	"math/big"
	"time"
)

const numberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXX with six random uppercase
// alphanumerics. Uniqueness is enforced by the orders.order_number index.
func NewOrderNumber(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	limit := big.NewInt(int64(len(numberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		suffix[i] = numberAlphabet[n.Int64()]
	}
	return "ORD-" + now.UTC().Format("20060102") + "-" + string(suffix), nil
}
