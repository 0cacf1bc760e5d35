package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// smartResult is the structured accounting result embedded in a successful
// response. The service has shipped two envelope shapes over time
// (smartAccountingResult and data); both are handled.
type smartResult struct {
	IsRelevant      *bool           `json:"isRelevant"`
	Error           string          `json:"error"`
	Message         string          `json:"message"`
	Note            string          `json:"note"`
	Description     string          `json:"description"`
	Date            string          `json:"date"`
	Type            string          `json:"type"`
	Direction       string          `json:"direction"`
	CategoryName    string          `json:"categoryName"`
	Category        string          `json:"category"`
	Amount          json.Number     `json:"amount"`
	BudgetName      string          `json:"budgetName"`
	BudgetOwnerName string          `json:"budgetOwnerName"`
}

// parseAccountingResponse turns a 2xx response body into an Outcome with the
// formatted reply text. Unparseable bodies still count as success with the
// plain confirmation line: the accounting entry was created either way.
func parseAccountingResponse(raw []byte) *Outcome {
	var envelope struct {
		SmartAccountingResult *smartResult `json:"smartAccountingResult"`
		Data                  *smartResult `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &Outcome{ResultText: "✅ 记账成功！"}
	}

	res := envelope.SmartAccountingResult
	if res == nil {
		res = envelope.Data
	}
	if res == nil {
		return &Outcome{ResultText: "✅ 记账成功！"}
	}

	if res.IsRelevant != nil && !*res.IsRelevant {
		return &Outcome{ResultText: "信息与记账无关", Unrelated: true}
	}
	if res.Error != "" {
		return &Outcome{ResultText: "❌ 记账失败: " + res.Error}
	}
	if res.Amount.String() == "" {
		msg := res.Message
		if msg == "" {
			msg = "记账失败"
		}
		return &Outcome{ResultText: "❌ 记账失败: " + msg}
	}

	return &Outcome{ResultText: formatReply(res)}
}

// formatReply builds the reply template. Every line it can produce appears
// in the self-echo marker set, so replies are recognized if they reflect
// back through the feed.
func formatReply(res *smartResult) string {
	lines := []string{"✅ 记账成功！"}

	detail := res.Note
	if detail == "" {
		detail = res.Description
	}
	if detail != "" {
		lines = append(lines, "📝 明细："+detail)
	}

	if res.Date != "" {
		date := res.Date
		if i := strings.IndexByte(date, 'T'); i > 0 {
			date = date[:i]
		}
		lines = append(lines, "📅 日期："+date)
	}

	direction := res.Type
	if direction == "" {
		direction = res.Direction
	}
	category := res.CategoryName
	if category == "" {
		category = res.Category
	}
	var dirParts []string
	if direction != "" {
		dirParts = append(dirParts, "💸 方向："+directionText(direction))
	}
	if category != "" {
		dirParts = append(dirParts, "分类："+category)
	}
	if len(dirParts) > 0 {
		lines = append(lines, strings.Join(dirParts, "；"))
	}

	if res.Amount.String() != "" {
		lines = append(lines, fmt.Sprintf("💰 金额：%s元", res.Amount.String()))
	}

	if res.BudgetName != "" {
		if res.BudgetName == "个人预算" && res.BudgetOwnerName != "" {
			lines = append(lines, fmt.Sprintf("📊 预算：%s（%s）", res.BudgetName, res.BudgetOwnerName))
		} else {
			lines = append(lines, "📊 预算："+res.BudgetName)
		}
	}

	return strings.Join(lines, "\n")
}

func directionText(direction string) string {
	switch strings.ToUpper(direction) {
	case "EXPENSE", "支出":
		return "支出"
	case "INCOME", "收入":
		return "收入"
	default:
		return direction
	}
}
