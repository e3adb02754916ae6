package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/company-insights/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		for _, wrapped := range wrapLine(line, boxWidth-4) {
			fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, wrapped)
		}
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintCompanyInfo outputs a human-readable summary of the extracted company profile.
func (p *Printer) PrintCompanyInfo(url string, info *types.CompanyInfo) {
	if info == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("URL:       %s\n", url))
	sb.WriteString(fmt.Sprintf("Industry:  %s\n", info.Industry))
	sb.WriteString(fmt.Sprintf("Size:      %s\n", info.CompanySize))
	sb.WriteString(fmt.Sprintf("Location:  %s\n", info.Location))
	sb.WriteString(fmt.Sprintf("Audience:  %s\n", info.TargetAudience))
	sb.WriteString(fmt.Sprintf("USP:       %s\n", info.UniqueSellingProposition))

	if len(info.CoreProductsServices) > 0 {
		sb.WriteString("\nProducts & Services:\n")
		count := min(len(info.CoreProductsServices), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", info.CoreProductsServices[i]))
		}
		if len(info.CoreProductsServices) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(info.CoreProductsServices)-maxItemsToShow))
		}
	}

	contact := info.ContactInfo
	sb.WriteString("\nContact:\n")
	sb.WriteString(fmt.Sprintf("  Email: %s\n", derefOr(contact.Email, types.NotSpecified)))
	sb.WriteString(fmt.Sprintf("  Phone: %s\n", derefOr(contact.Phone, types.NotSpecified)))

	networks := make([]string, 0, len(contact.SocialMedia))
	for name, link := range contact.SocialMedia {
		if link != nil && *link != "" {
			networks = append(networks, name)
		}
	}
	sort.Strings(networks)
	for _, name := range networks {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", name, *contact.SocialMedia[name]))
	}

	p.printBox("COMPANY PROFILE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAnswers outputs the answered questions of an analysis.
func (p *Printer) PrintAnswers(answers []types.ExtractedAnswer) {
	if len(answers) == 0 {
		return
	}

	var sb strings.Builder
	for i, answer := range answers {
		sb.WriteString(fmt.Sprintf("Q: %s\n", answer.Question))
		sb.WriteString(fmt.Sprintf("A: %s", answer.Answer))
		if i < len(answers)-1 {
			sb.WriteString("\n\n")
		}
	}

	p.printBox("EXTRACTED ANSWERS", sb.String())
}

// PrintConversation outputs a conversational reply and the excerpts supporting it.
func (p *Printer) PrintConversation(exchange *types.ConversationExchange) {
	if exchange == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You:   %s\n", exchange.UserQuery))
	sb.WriteString(fmt.Sprintf("Agent: %s\n", exchange.AgentResponse))

	if len(exchange.ContextSources) > 0 {
		sb.WriteString("\nSources:\n")
		count := min(len(exchange.ContextSources), 3)
		for i := 0; i < count; i++ {
			source := exchange.ContextSources[i]
			if len(source) > 120 {
				source = source[:117] + "..."
			}
			sb.WriteString(fmt.Sprintf("  • %s\n", source))
		}
		if len(exchange.ContextSources) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(exchange.ContextSources)-3))
		}
	}

	p.printBox("CONVERSATION", strings.TrimSuffix(sb.String(), "\n"))
}

// wrapLine splits a line into chunks of at most width runes.
func wrapLine(line string, width int) []string {
	runes := []rune(line)
	if len(runes) <= width {
		return []string{line}
	}
	var out []string
	for len(runes) > width {
		out = append(out, string(runes[:width]))
		runes = runes[width:]
	}
	return append(out, string(runes))
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
