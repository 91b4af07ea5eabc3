package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/songhatch/api/pkg/response"
)

// SignatureHeader carries the provider's hex HMAC-SHA256 of the raw body.
const SignatureHeader = "x-suno-signature"

// WebhookSignature verifies inbound provider callbacks before any state
// is touched. With no secret configured verification is skipped — a
// deliberate development-mode bypass that is logged on every request.
func WebhookSignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			log.Printf("[Webhook] signature verification skipped: no secret configured")
			return c.Next()
		}

		signature := c.Get(SignatureHeader)
		if signature == "" {
			return response.Unauthorized(c, "Missing webhook signature")
		}

		if !verifySignature(c.Body(), signature, secret) {
			return response.Unauthorized(c, "Invalid webhook signature")
		}

		return c.Next()
	}
}

// verifySignature computes HMAC-SHA256 over the raw body and compares
// hex digests in constant time.
func verifySignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
