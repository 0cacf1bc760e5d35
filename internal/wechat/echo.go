package wechat

import "strings"

// replyMarkers are substrings only this pipeline's own reply template
// produces. A counterpart message that merely quotes one of them (e.g.
// forwarding a reply, or a message that happens to contain "金额：") must not
// be suppressed, so IsReplyEcho requires at least two co-occurring markers.
var replyMarkers = []string{
	"✅ 记账成功！",
	"📝 明细：",
	"📅 日期：",
	"💸 方向：",
	"💰 金额：",
	"📊 预算：",
	"⚠️ 记账服务返回错误",
	"❌ 记账失败",
	"信息与记账无关",
}

const echoMarkerThreshold = 2

// IsReplyEcho reports whether text looks like one of our own replies
// reflected back through the feed. This is the content-based fallback for
// records the automation library failed to tag as self-authored; structural
// classification remains the primary filter.
func IsReplyEcho(text string) bool {
	return CountReplyMarkers(text) >= echoMarkerThreshold
}

// CountReplyMarkers counts how many distinct reply-template markers occur in
// text. Exported for the doctor command's filter self-check.
func CountReplyMarkers(text string) int {
	n := 0
	for _, m := range replyMarkers {
		if strings.Contains(text, m) {
			n++
		}
	}
	return n
}
