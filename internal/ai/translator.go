package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"kidshop/pkg/models"

	"github.com/sashabaranov/go-openai"
)

var languageNames = map[models.Language]string{
	models.LangKa: "Georgian",
	models.LangEn: "English",
	models.LangRu: "Russian",
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Translator suggests missing languages of shop texts
type Translator struct {
	client chatClient
	model  string
}

// NewTranslator creates a translator. It returns nil when no API key is set.
func NewTranslator(apiKey, model string) *Translator {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Translator{client: openai.NewClient(apiKey), model: model}
}

// Suggest fills the empty languages of text from the filled ones. Filled languages
// are returned unchanged.
func (t *Translator) Suggest(ctx context.Context, text models.LocalizedText, hint string) (models.LocalizedText, error) {
	missing := text.Missing()
	if len(missing) == 0 {
		return text, nil
	}
	if text.IsEmpty() {
		return text, fmt.Errorf("nothing to translate from")
	}

	source := map[string]string{}
	for _, lang := range models.SupportedLanguages {
		if v := text.In(lang); v != "" {
			source[string(lang)] = v
		}
	}
	sourceJSON, err := json.Marshal(source)
	if err != nil {
		return text, err
	}

	var targets []string
	for _, lang := range missing {
		targets = append(targets, fmt.Sprintf(`"%s" (%s)`, lang, languageNames[lang]))
	}

	prompt := fmt.Sprintf(`You translate texts for an online shop of handmade children's products in Georgia.
Context: %s

Source text by language code:
%s

Translate it into: %s.
Keep placeholders like {name} or %%s unchanged. Keep it short and natural for shop customers.

IMPORTANT: Answer ONLY with a valid JSON object mapping language code to text, without any other text.`,
		hint, string(sourceJSON), strings.Join(targets, ", "))

	resp, err := t.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: t.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   800,
			Temperature: 0.2,
		},
	)
	if err != nil {
		return text, fmt.Errorf("failed to generate AI response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return text, fmt.Errorf("no response from AI")
	}

	var out map[string]string
	if err := decodeJSONObject(resp.Choices[0].Message.Content, &out); err != nil {
		return text, err
	}

	result := text
	for _, lang := range missing {
		if v := strings.TrimSpace(out[string(lang)]); v != "" {
			result.Set(lang, v)
		}
	}
	return result, nil
}

// decodeJSONObject parses content, falling back to the outermost {...} block
func decodeJSONObject(content string, v interface{}) error {
	content = strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}") + 1
	if startIdx < 0 || endIdx <= startIdx {
		return fmt.Errorf("no valid JSON found in AI response")
	}
	if err := json.Unmarshal([]byte(content[startIdx:endIdx]), v); err != nil {
		return fmt.Errorf("failed to parse AI response as JSON: %w", err)
	}
	return nil
}
