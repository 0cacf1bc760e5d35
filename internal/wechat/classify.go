package wechat

import "strings"

// Classify extracts the normalized (kind, sender, text) triple from a raw
// record. The sender remark (the name the local account assigned to the
// contact) wins over the raw sender handle when present, so fingerprints stay
// stable when a contact renames their account. Text is whitespace-trimmed;
// classification never inspects message wording.
func Classify(rec RawRecord) (Kind, string, string) {
	sender := strings.TrimSpace(rec.SenderRemark)
	if sender == "" {
		sender = strings.TrimSpace(rec.Sender)
	}
	return rec.Kind, sender, strings.TrimSpace(rec.Content)
}
