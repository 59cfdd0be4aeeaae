package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"
)

// conversationTemplate системный текст разговорного режима.
// История и текущая реплика подставляются как history и input.
const conversationTemplate = `You are a helpful and friendly AI assistant. Respond to the user's messages in clear, natural-sounding plain text. Avoid using markdown, headings, or special formatting.

Write in simple, conversational language. Use paragraphs for clarity.

- Use emojis only when they add clarity or emotion to your response
- Use plain text bullet points if they help structure the information
- When you provide a list, always start each item with a dash (- ) or a number (1. 2. 3. ...).
- Keep responses informative, concise, and polite

Conversation so far:
{{.history}}
Human: {{.input}}
AI:`

var conversationPrompt = prompts.PromptTemplate{
	Template:       conversationTemplate,
	TemplateFormat: prompts.TemplateFormatGoTemplate,
	InputVariables: []string{"history", "input"},
}

// RenderConversationPrompt собирает промпт из истории буфера и текущей реплики.
func RenderConversationPrompt(history, input string) (string, error) {
	prompt, err := conversationPrompt.Format(map[string]any{
		"history": history,
		"input":   input,
	})
	if err != nil {
		return "", fmt.Errorf("format prompt: %w", err)
	}
	return prompt, nil
}
