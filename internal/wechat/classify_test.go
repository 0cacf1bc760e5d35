package wechat

import (
	"encoding/json"
	"testing"
)

func TestRawRecordUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Kind
	}{
		{"friend tag", `{"type":"friend","sender":"a","content":"x"}`, KindCounterpart},
		{"self tag", `{"type":"self","sender":"me","content":"x"}`, KindSelf},
		{"sys tag", `{"type":"sys","content":"x"}`, KindSystem},
		{"system tag", `{"type":"system","content":"x"}`, KindSystem},
		{"time tag", `{"type":"time","content":"10:30"}`, KindTimeMarker},
		{"mixed case", `{"type":"Friend","sender":"a","content":"x"}`, KindCounterpart},
		{"padded", `{"type":" friend ","sender":"a","content":"x"}`, KindCounterpart},
		{"unknown tag", `{"type":"recall","content":"x"}`, KindUnknown},
		{"missing tag", `{"sender":"a","content":"x"}`, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec RawRecord
			if err := json.Unmarshal([]byte(tt.in), &rec); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if rec.Kind != tt.want {
				t.Errorf("kind = %q, want %q", rec.Kind, tt.want)
			}
		})
	}
}

func TestRawRecordUnmarshal_MalformedJSON(t *testing.T) {
	var rec RawRecord
	if err := json.Unmarshal([]byte(`{"type":`), &rec); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		rec        RawRecord
		wantSender string
		wantText   string
	}{
		{
			name:       "remark wins over sender",
			rec:        RawRecord{Kind: KindCounterpart, Sender: "wxid_abc123", SenderRemark: "老婆", Content: "午饭 20"},
			wantSender: "老婆",
			wantText:   "午饭 20",
		},
		{
			name:       "falls back to sender",
			rec:        RawRecord{Kind: KindCounterpart, Sender: "wxid_abc123", Content: "午饭 20"},
			wantSender: "wxid_abc123",
			wantText:   "午饭 20",
		},
		{
			name:       "blank remark falls back",
			rec:        RawRecord{Kind: KindCounterpart, Sender: "alice", SenderRemark: "   ", Content: "x"},
			wantSender: "alice",
			wantText:   "x",
		},
		{
			name:       "text trimmed",
			rec:        RawRecord{Kind: KindCounterpart, Sender: "alice", Content: "  打车 35\n"},
			wantSender: "alice",
			wantText:   "打车 35",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, sender, text := Classify(tt.rec)
			if kind != tt.rec.Kind {
				t.Errorf("kind = %q, want %q", kind, tt.rec.Kind)
			}
			if sender != tt.wantSender {
				t.Errorf("sender = %q, want %q", sender, tt.wantSender)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
		})
	}
}
