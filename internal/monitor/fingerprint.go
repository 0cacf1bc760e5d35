// Package monitor implements the per-conversation poll loop and the filter
// chain that decides which raw records become admitted messages: structural
// classification, self-echo suppression, the startup baseline, and the dedup
// store.
package monitor

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/wxledgerhq/wxledger/internal/wechat"
)

// Fingerprint derives the stable identity of a logical message from its
// kind, sender, and normalized text. It is pure and deterministic, and
// deliberately excludes timestamps: reflected echoes of the same message
// carry unreliable or missing times, and the same (kind, sender, text) must
// hash identically on every poll.
func Fingerprint(kind wechat.Kind, sender, text string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(sender)))
	h.Write([]byte{0})
	h.Write([]byte(normalizeText(text)))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// normalizeText trims surrounding whitespace and normalizes line endings so
// that a record re-rendered by the chat window with cosmetic whitespace
// differences still maps to the same fingerprint.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
