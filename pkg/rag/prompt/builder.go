package prompt

import (
	"strings"

	"studymate-be/pkg/llm"
	"studymate-be/pkg/rag/memory"
)

// ChatBuilder renders the study assistant prompt from chat history, retrieved document
// context and the student's question.
type ChatBuilder struct {
	history []memory.ChatTurn
	context string
	query   string
}

func NewChatBuilder(history []memory.ChatTurn, context, query string) *ChatBuilder {
	return &ChatBuilder{history: history, context: context, query: query}
}

// Build returns the prompt as a single string.
func (b *ChatBuilder) Build() string {
	var prompt strings.Builder

	b.writeTask(&prompt)
	b.writeHistory(&prompt)
	b.writeContext(&prompt)
	b.writeQuestion(&prompt)

	return prompt.String()
}

// Messages wraps Build as the final user message of a chat call.
func (b *ChatBuilder) Messages() []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: b.Build()}}
}

func (b *ChatBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("You are an AI assistant designed to help university students understand the content of the document they uploaded.\n")
	prompt.WriteString("Use the provided chat history and the document context to give clear, concise, and informative answers.\n\n")
	prompt.WriteString("After answering, encourage the student to ask any follow-up questions related to the conversation to help them better understand the material.\n\n")
}

func (b *ChatBuilder) writeHistory(prompt *strings.Builder) {
	prompt.WriteString("Chat History:\n")
	for _, t := range b.history {
		if t.Role == memory.RoleAssistant {
			prompt.WriteString("AI: ")
		} else {
			prompt.WriteString("Human: ")
		}
		prompt.WriteString(t.Content)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n")
}

func (b *ChatBuilder) writeContext(prompt *strings.Builder) {
	prompt.WriteString("Document Content:\n")
	prompt.WriteString(b.context)
	prompt.WriteString("\n\n")
}

func (b *ChatBuilder) writeQuestion(prompt *strings.Builder) {
	prompt.WriteString("Question:\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n\nAnswer:")
}
