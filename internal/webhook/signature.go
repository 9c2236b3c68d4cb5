package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// validMetaSignature checks the X-Hub-Signature-256 header against the raw
// request body. Meta signs with HMAC-SHA256 keyed by the app secret.
func validMetaSignature(appSecret string, body []byte, header string) bool {
	if appSecret == "" || header == "" {
		return false
	}
	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	providedMAC, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), providedMAC)
}

// validTwitterSignature checks the x-twitter-webhooks-signature header
// against the raw request body. Twitter signs with HMAC-SHA256 keyed by the
// consumer secret, base64-encoded.
func validTwitterSignature(consumerSecret string, body []byte, header string) bool {
	if consumerSecret == "" || header == "" {
		return false
	}
	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	providedMAC, err := base64.StdEncoding.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(consumerSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), providedMAC)
}

// twitterResponseToken answers a CRC challenge: base64 HMAC-SHA256 of the
// crc_token keyed by the consumer secret, prefixed per the API contract.
func twitterResponseToken(consumerSecret, crcToken string) string {
	mac := hmac.New(sha256.New, []byte(consumerSecret))
	mac.Write([]byte(crcToken))
	return "sha256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
