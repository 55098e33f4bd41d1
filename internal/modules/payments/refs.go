package payments

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// NewTransactionRef generates the immutable internal reference, e.g.
// TXN-9f86d081884c7d65.
func NewTransactionRef() string {
	return "TXN-" + randHex(10)
}

// newReceiptNumber is called only on the transition into completed, e.g.
// RCP-20260831-3A94F1.
func newReceiptNumber(now time.Time) string {
	return "RCP-" + now.Format("20060102") + "-" + strings.ToUpper(randHex(3))
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
