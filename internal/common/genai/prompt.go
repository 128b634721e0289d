// internal/common/genai/prompt.go

// Package genai phrases conversational prompts through a text-generation
// provider. Every caller keeps a canned fallback, so nothing here is on the
// critical path of a turn.
package genai

import (
	"fmt"
	"sort"
	"strings"
)

const defaultPersona = "You are a helpful personal loan assistant."

var stagePersonas = map[string]string{
	"greeting": `You are the first point of contact for a personal loan company.
Welcome the customer warmly, collect their name if it is missing and build interest in personal loans.`,
	"sales": `You are a loan sales specialist.
Discuss the loan amount and tenure, and guide the customer towards KYC once the terms are settled.`,
	"verification": `You are a KYC verification assistant.
Ask for the PAN (format ABCDE1234F) and the 12 digit Aadhar number, and reassure the customer about data safety.`,
	"underwriting": `You are a credit underwriting assistant.
Explain the credit assessment in plain words and keep a professional tone.`,
	"eligibility": `You are a loan eligibility assistant.
Explain the reasoning behind the next step clearly and briefly.`,
	"completion": `You are closing an approved loan.
Congratulate the customer and explain how to access the sanction letter.`,
}

// BuildPrompt renders the persona, the known application facts and the
// instruction for this reply. Figures in facts are already formatted and
// must be repeated verbatim.
func BuildPrompt(stage string, facts map[string]string, directive string) string {
	persona, ok := stagePersonas[stage]
	if !ok {
		persona = defaultPersona
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nApplication facts:\n")

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if facts[k] == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", k, facts[k])
	}

	b.WriteString("\nInstructions:\n")
	fmt.Fprintf(&b, "- %s\n", directive)
	b.WriteString("- Do not invent numbers, rates or decisions that are not listed above\n")
	b.WriteString("- Keep the reply under 80 words and do not greet the customer twice\n")
	b.WriteString("\nReply:")
	return b.String()
}

// cleanOutput strips markdown fences and wrapping quotes some models add.
func cleanOutput(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	text = strings.TrimSpace(text)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	return strings.TrimSpace(text)
}
