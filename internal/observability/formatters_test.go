package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jonathan/company-insights/internal/types"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestPrintCompanyInfo(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	info := &types.CompanyInfo{
		Industry:                 "Retail",
		CompanySize:              "Not specified",
		Location:                 "Lisbon",
		CoreProductsServices:     []string{"Shoes", "Bags"},
		UniqueSellingProposition: "Handmade",
		TargetAudience:           "Young professionals",
		ContactInfo: types.ContactInfo{
			Email: strPtr("hi@example.com"),
			SocialMedia: map[string]*string{
				"linkedin": strPtr("https://linkedin.com/company/x"),
				"twitter":  nil,
			},
		},
	}

	p.PrintCompanyInfo("https://example.com", info)
	output := buf.String()

	assert.Contains(t, output, "COMPANY PROFILE")
	assert.Contains(t, output, "Retail")
	assert.Contains(t, output, "Shoes")
	assert.Contains(t, output, "hi@example.com")
	assert.Contains(t, output, "linkedin")
	assert.NotContains(t, output, "twitter")
}

func TestPrintCompanyInfo_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCompanyInfo("https://example.com", nil)
	assert.Empty(t, buf.String())
}

func TestPrintCompanyInfo_ManyProducts(t *testing.T) {
	var buf bytes.Buffer
	info := &types.CompanyInfo{CoreProductsServices: []string{"a", "b", "c", "d", "e", "f", "g"}}

	NewPrinter(&buf).PrintCompanyInfo("u", info)
	assert.Contains(t, buf.String(), "... and 2 more")
}

func TestPrintAnswers(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintAnswers([]types.ExtractedAnswer{
		{Question: "What do they sell?", Answer: "Shoes."},
	})

	output := buf.String()
	assert.Contains(t, output, "EXTRACTED ANSWERS")
	assert.Contains(t, output, "Q: What do they sell?")
	assert.Contains(t, output, "A: Shoes.")
}

func TestPrintAnswers_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintAnswers(nil)
	assert.Empty(t, buf.String())
}

func TestPrintConversation(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintConversation(&types.ConversationExchange{
		UserQuery:      "Tell me more",
		AgentResponse:  "They make handmade shoes.",
		ContextSources: []string{"Handmade in Lisbon since 1990"},
	})

	output := buf.String()
	assert.Contains(t, output, "CONVERSATION")
	assert.Contains(t, output, "Tell me more")
	assert.Contains(t, output, "Handmade in Lisbon")
}

func TestPrintBox_WrapsLongLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).printBox("TITLE", strings.Repeat("x", 130))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// top border, title, separator, three wrapped lines, bottom border
	assert.Len(t, lines, 7)
}
