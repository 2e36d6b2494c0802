package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"vault/internal/core"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// generator is the part of *genai.Models the provider needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks a Gemini model for a strict JSON categorization.
type Gemini struct {
	models generator
	model  string
}

// NewGemini creates a client for the Gemini API. With an empty apiKey the
// SDK falls back to GOOGLE_API_KEY / GEMINI_API_KEY.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models generator, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{models: models, model: model}
}

func (g *Gemini) Name() string { return "gemini" }

const promptTemplate = "You categorize personal expenses into a 50/30/20 budget.\n\n" +
	"Expense:\n" +
	"- merchant: %q\n" +
	"- note: %q\n" +
	"- amount: %d\n\n" +
	"Return STRICT JSON only, one object with these fields:\n" +
	"- \"category\": one of \"Needs\", \"Wants\", \"Savings\"\n" +
	"- \"subCategory\": a short label such as \"Groceries\" or \"Dining\"\n" +
	"- \"merchant\": the cleaned merchant name\n" +
	"Do NOT wrap the response in code fences.\n"

type modelAnswer struct {
	Category    string `json:"category"`
	SubCategory string `json:"subCategory"`
	Merchant    string `json:"merchant"`
}

func (g *Gemini) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf(promptTemplate, req.Merchant, req.Note, req.Amount), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return Suggestion{}, fmt.Errorf("generate content: %w", err)
	}
	raw := resp.Text()
	if strings.TrimSpace(raw) == "" {
		return Suggestion{}, errors.New("empty response from model")
	}

	var ans modelAnswer
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &ans); err != nil {
		return Suggestion{}, fmt.Errorf("unmarshal model answer: %w", err)
	}
	category, ok := core.ParseCategory(ans.Category)
	if !ok || category == core.Uncategorized {
		return Suggestion{}, fmt.Errorf("%w: model returned category %q", ErrNoSuggestion, ans.Category)
	}

	merchant := strings.TrimSpace(ans.Merchant)
	if merchant == "" {
		merchant = req.Merchant
	}
	return Suggestion{
		ExpenseID:   req.ExpenseID,
		Category:    category,
		SubCategory: strings.TrimSpace(ans.SubCategory),
		Merchant:    merchant,
		Provider:    g.Name(),
	}, nil
}

// cleanModelJSON strips code fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}
