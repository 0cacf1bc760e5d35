// Package wechat provides the client for the local WeChat automation bridge
// and the classification of the raw records it returns.
//
// The bridge wraps the desktop automation library and exposes two operations
// over a local HTTP API: list the currently visible messages of a watched
// conversation, and send a text message into a conversation. The bridge gives
// no "new messages only" guarantee — every poll can return a mix of old and
// new records, including our own previously sent replies.
package wechat

import (
	"encoding/json"
	"strings"
)

// Kind is the structural category of a raw record as tagged by the
// automation library.
type Kind string

const (
	// KindCounterpart is a message authored by the chat counterpart.
	// Only counterpart records are candidates for delivery.
	KindCounterpart Kind = "counterpart"
	// KindSelf is a message authored by the local account, including
	// replies this pipeline sent earlier.
	KindSelf Kind = "self"
	// KindSystem covers join/leave/rename/recall notices.
	KindSystem Kind = "system"
	// KindTimeMarker is a timestamp separator row in the chat window.
	KindTimeMarker Kind = "time-marker"
	// KindUnknown is anything the automation library could not tag.
	KindUnknown Kind = "unknown"
)

// RawRecord is one entry from a conversation poll. Transient: it is
// classified and discarded, never stored.
type RawRecord struct {
	Kind         Kind   `json:"-"`
	Sender       string `json:"sender"`
	SenderRemark string `json:"sender_remark,omitempty"`
	Content      string `json:"content"`
	Time         string `json:"time,omitempty"`
}

// bridgeKinds maps the automation library's type tags to Kind.
// wxauto tags counterpart messages as "friend" and system notices as "sys".
var bridgeKinds = map[string]Kind{
	"friend": KindCounterpart,
	"self":   KindSelf,
	"sys":    KindSystem,
	"system": KindSystem,
	"time":   KindTimeMarker,
}

// UnmarshalJSON decodes a bridge record, normalizing the type tag to a Kind.
// Unrecognized tags become KindUnknown rather than an error: the record is
// dropped downstream, not the whole poll.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type         string `json:"type"`
		Sender       string `json:"sender"`
		SenderRemark string `json:"sender_remark"`
		Content      string `json:"content"`
		Time         string `json:"time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, ok := bridgeKinds[strings.ToLower(strings.TrimSpace(raw.Type))]
	if !ok {
		kind = KindUnknown
	}
	*r = RawRecord{
		Kind:         kind,
		Sender:       raw.Sender,
		SenderRemark: raw.SenderRemark,
		Content:      raw.Content,
		Time:         raw.Time,
	}
	return nil
}
