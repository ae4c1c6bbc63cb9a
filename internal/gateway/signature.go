package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// SignatureVerifier authenticates webhook notifications. The gateway
// signs every notification with a hex SHA-512 digest over
// order_id || status_code || gross_amount || server_key.
type SignatureVerifier struct {
	serverKey string
}

func NewSignatureVerifier(serverKey string) *SignatureVerifier {
	return &SignatureVerifier{serverKey: serverKey}
}

func (v *SignatureVerifier) Verify(orderID string, statusCode string, grossAmount string, provided string) bool {
	if orderID == "" || statusCode == "" || grossAmount == "" || provided == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + v.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
