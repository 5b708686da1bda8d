package openai

import (
	"strings"

	"github.com/koscakluka/ema-room/core/memory"
)

type openAIMessage struct {
	Type messageType `json:"type"`

	Role messageRole `json:"role,omitempty"`
	// Content is either a string or a list of content parts.
	Content any `json:"content,omitempty"`
}

type messageRole string

const (
	messageRoleDeveloper messageRole = "developer"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type messageType string

const (
	messageTypeMessage messageType = "message"
)

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

func toOpenAIRole(role memory.Role) messageRole {
	switch role {
	case memory.RoleSystem:
		return messageRoleDeveloper
	case memory.RoleAssistant:
		return messageRoleAssistant
	default:
		return messageRoleUser
	}
}

// toOpenAIMessages renders working memory followed by the step instruction.
func toOpenAIMessages(mem memory.WorkingMemory, instruction string) []openAIMessage {
	messages := []openAIMessage{}
	for _, entry := range mem.Entries() {
		if entry.Content == "" {
			continue
		}
		messages = append(messages, openAIMessage{
			Type:    messageTypeMessage,
			Role:    toOpenAIRole(entry.Role),
			Content: entry.Content,
		})
	}

	if instruction != "" {
		messages = append(messages, openAIMessage{
			Type:    messageTypeMessage,
			Role:    messageRoleUser,
			Content: instruction,
		})
	}
	return messages
}

func toImageMessage(instruction, image string) openAIMessage {
	return openAIMessage{
		Type: messageTypeMessage,
		Role: messageRoleUser,
		Content: []contentPart{
			{Type: "input_text", Text: instruction},
			{Type: "input_image", ImageURL: toDataURL(image)},
		},
	}
}

// toDataURL accepts either a data URL or a bare base64 PNG.
func toDataURL(image string) string {
	if strings.HasPrefix(image, "data:") || strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return "data:image/png;base64," + image
}

func decisionInstruction(prompt string, choices []string) string {
	return prompt + "\n\nReply with exactly one of the following options and nothing else: " +
		strings.Join(choices, ", ")
}
