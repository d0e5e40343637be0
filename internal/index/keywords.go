// ABOUTME: Financial vocabulary used to flag chunks at insertion time
// ABOUTME: The flag is surfaced on citations so callers can prefer numeric passages
package index

import "strings"

// FinancialKeywords are matched as lowercase substrings
var FinancialKeywords = []string{
	"revenue", "earnings", "profit", "loss", "ebitda", "cash flow",
	"balance sheet", "income statement", "assets", "liabilities",
	"equity", "valuation", "market cap", "pe ratio", "guidance",
}

// HasFinancialKeywords reports whether text mentions any financial keyword
func HasFinancialKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range FinancialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
