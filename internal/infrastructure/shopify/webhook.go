package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// HMACHeader carries the webhook body signature
const HMACHeader = "X-Shopify-Hmac-Sha256"

// SignWebhook returns base64(HMAC-SHA256(secret, body))
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks the signature header against the raw request body.
// An empty secret or signature never verifies.
func VerifyWebhook(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignWebhook(secret, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}
