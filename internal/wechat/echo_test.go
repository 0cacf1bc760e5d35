package wechat

import "testing"

func TestIsReplyEcho(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "full success reply",
			text: "✅ 记账成功！\n📝 明细：午饭\n📅 日期：2026-08-28\n💸 方向：支出\n💰 金额：20元",
			want: true,
		},
		{
			name: "error reply",
			text: "⚠️ 记账服务返回错误：❌ 记账失败",
			want: true,
		},
		{
			name: "two markers",
			text: "✅ 记账成功！💰 金额：20元",
			want: true,
		},
		{
			name: "single marker quoted by counterpart",
			text: "你发的那条💰 金额：20元是什么意思",
			want: false,
		},
		{
			name: "unrelated marker alone",
			text: "信息与记账无关",
			want: false,
		},
		{
			name: "ordinary message",
			text: "午饭 20",
			want: false,
		},
		{
			name: "empty",
			text: "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsReplyEcho(tt.text); got != tt.want {
				t.Errorf("IsReplyEcho(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCountReplyMarkers(t *testing.T) {
	text := "✅ 记账成功！\n📝 明细：打车\n💰 金额：35元"
	if got := CountReplyMarkers(text); got != 3 {
		t.Errorf("CountReplyMarkers = %d, want 3", got)
	}
	if got := CountReplyMarkers("hello"); got != 0 {
		t.Errorf("CountReplyMarkers = %d, want 0", got)
	}
}
