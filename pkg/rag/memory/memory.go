// Package memory keeps the bounded per (user, session) chat log. Turns are stored
// oldest-first; the list is capped at 2 x max history and its TTL is refreshed whenever
// turns are appended.
package memory

import (
	"context"
	"fmt"
	"time"

	"studymate-be/pkg/llm"
)

const (
	DefaultMaxHistory = 10
	DefaultTTL        = 7 * 24 * time.Hour
)

type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

type ChatTurn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	TS      time.Time `json:"ts"`
}

// Key is the storage key of one conversation.
func Key(user, session string) string {
	return fmt.Sprintf("chat:%s:%s", user, session)
}

// Capacity is the number of turns kept for maxHistory exchanges.
func Capacity(maxHistory int) int {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return 2 * maxHistory
}

// Window appends next to turns and keeps the newest Capacity(maxHistory) of them. turns is
// not modified.
func Window(turns []ChatTurn, next ChatTurn, maxHistory int) []ChatTurn {
	out := make([]ChatTurn, 0, len(turns)+1)
	out = append(append(out, turns...), next)
	return tail(out, Capacity(maxHistory))
}

// Store persists chat turns. Append must write all given turns in one atomic step and keep
// appends to the same key in order.
type Store interface {
	// Load returns at most the capacity newest turns, oldest first.
	Load(ctx context.Context, user, session string) ([]ChatTurn, error)
	Append(ctx context.Context, user, session string, turns ...ChatTurn) error
	Clear(ctx context.Context, user, session string) error
}

// ToMessages converts turns into LLM chat messages.
func ToMessages(turns []ChatTurn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: t.Content})
	}
	return out
}

func tail(turns []ChatTurn, n int) []ChatTurn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
