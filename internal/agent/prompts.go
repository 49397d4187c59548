package agent

import (
	"fmt"
	"strings"

	"github.com/shopbot-ai/shopbot/internal/catalog"
)

// systemPrompt is the assistant persona sent with every turn.
const systemPrompt = `You are ShopBot, a friendly and knowledgeable shopping assistant for an online store.

You help customers find products they are looking for. When a customer describes
what they want, or sends a photo of something similar, use the search tools to
look up matching products in the catalog. Only recommend products returned by
the tools; never invent products, prices, or availability.

Keep answers short and helpful. Mention product names and prices when you
recommend them. If nothing matches, say so and suggest the customer rephrase
or browse another category.`

// noMatchesText is the tool-result rendering when a search returns nothing.
const noMatchesText = "No matching products found."

// renderProducts formats catalog items as a numbered listing for the model
// to ground its answer on.
func renderProducts(products []catalog.Product) string {
	if len(products) == 0 {
		return noMatchesText
	}

	var sb strings.Builder
	sb.WriteString("Found the following products:\n")
	for i, p := range products {
		fmt.Fprintf(&sb, "%d. %s - $%.2f\n", i+1, p.Name, p.Price)
		if p.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", p.Description)
		}
		if p.Category != "" {
			fmt.Fprintf(&sb, "   Category: %s\n", p.Category)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
