// Package promptbuilder formats market data and retrieved context into
// prompts for the narrative generator.
package promptbuilder

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vkuzmin/cryptosage/internal/domain"
)

// SystemPrompt defines the global instructions for the analysis LLM.
const SystemPrompt = `You are a cryptocurrency market analyst. Users give you a token, its current price, and their target price; you give a short, actionable assessment.

Consider the following factors:
1. The difference between the current price and the target price
2. General market trends visible in the provided statistics
3. Any prior analyses supplied as context

Based on this simple analysis, provide a brief recommendation on whether the user should buy, sell, or hold the token. Give a short explanation for your recommendation.

Your response must be structured as follows:
1. Brief market overview (1 sentence)
2. Recommendation (Buy/Sell/Hold)
3. Short explanation (1-2 sentences)

Keep the whole answer under 100 words and avoid technical jargon.`

// AnalysisContext carries everything the user prompt is built from.
type AnalysisContext struct {
	Token         string
	CurrentPrice  decimal.Decimal
	TargetPrice   decimal.Decimal
	Snapshot      domain.MarketSnapshot
	PriorAnalyses []string
}

// PromptBuilder constructs user prompts for recommendation requests.
type PromptBuilder struct{}

func New() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildUserPrompt renders the analysis request for one token.
func (pb *PromptBuilder) BuildUserPrompt(ctx AnalysisContext) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Analyze the current market situation for %s with a price of $%s compared to the target price of $%s.\n\n",
		ctx.Token, ctx.CurrentPrice.String(), ctx.TargetPrice.String()))

	sb.WriteString("## Market Statistics (USD)\n\n")
	sb.WriteString(fmt.Sprintf("- Price: %.2f\n", ctx.Snapshot.Price))
	sb.WriteString(fmt.Sprintf("- 24h Volume: %.0f\n", ctx.Snapshot.Volume24h))
	sb.WriteString(fmt.Sprintf("- Market Cap: %.0f\n", ctx.Snapshot.MarketCap))
	sb.WriteString(fmt.Sprintf("- 24h Change: %.2f (%.2f%%)\n", ctx.Snapshot.PriceChange24h, ctx.Snapshot.PriceChangePercentage24h))

	if len(ctx.PriorAnalyses) > 0 {
		sb.WriteString("\n## Prior Analyses\n\n")
		for i, text := range ctx.PriorAnalyses {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, text))
		}
	}

	return sb.String()
}
