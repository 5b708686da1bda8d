package groq

import (
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-room/core/memory"
)

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

// visionMessage carries content parts, groq only accepts them on user
// messages.
type visionMessage struct {
	Role    messageRole   `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// toMessages renders working memory followed by the step instruction. Roles
// share their names with groq's, so entries are copied field by field.
func toMessages(mem memory.WorkingMemory, instruction string) ([]message, error) {
	entries := []memory.Entry{}
	for _, entry := range mem.Entries() {
		if entry.Content != "" {
			entries = append(entries, entry)
		}
	}

	messages := []message{}
	if err := copier.Copy(&messages, entries); err != nil {
		return nil, fmt.Errorf("failed to convert memory to messages: %w", err)
	}

	if instruction != "" {
		messages = append(messages, message{Role: messageRoleUser, Content: instruction})
	}
	return messages, nil
}
