package perceptions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindObjectAdded Kind = "object_added"
	KindTextMessage Kind = "text_message"
	KindOther       Kind = "other"
)

const (
	ActionAddObject   = "addObject"
	ActionSendMessage = "sendMessage"
)

func toKind(action string) Kind {
	switch action {
	case ActionAddObject:
		return KindObjectAdded
	case ActionSendMessage, "says", "said":
		return KindTextMessage
	default:
		return KindOther
	}
}

// Perception is a single input event delivered to the soul.
type Perception struct {
	ID     string
	Kind   Kind
	Action string
	// Content is the human readable form of the perception. For images it is
	// only a placeholder, the image itself is carried in Image.
	Content string
	// Image is a base64 encoded image, optionally prefixed with a data URL
	// header.
	Image       string
	Description string
	ReceivedAt  time.Time
}

func (p Perception) HasImage() bool { return p.Image != "" }

// String renders the perception the way it is remembered in working memory.
func (p Perception) String() string {
	content := p.Content
	if content == "" && p.HasImage() {
		content = fmt.Sprintf("(image - %d bytes)", len(p.Image))
	}
	return fmt.Sprintf("Interlocutor %s: %s", p.Action, content)
}

// Ingress is the wire form of a perception sent by clients.
type Ingress struct {
	Action   string           `json:"action"`
	Content  string           `json:"content,omitempty"`
	Metadata *IngressMetadata `json:"_metadata,omitempty"`
}

type IngressMetadata struct {
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

func New(action, content string) Perception {
	return Perception{
		ID:         uuid.NewString(),
		Kind:       toKind(action),
		Action:     action,
		Content:    content,
		ReceivedAt: time.Now(),
	}
}

func NewObjectAdded(image string) Perception {
	p := New(ActionAddObject, fmt.Sprintf("(image - %d bytes)", len(image)))
	p.Image = image
	return p
}

func NewTextMessage(text string) Perception {
	return New(ActionSendMessage, text)
}

// Parse decodes an ingress frame into a perception.
func Parse(data []byte) (Perception, error) {
	var ingress Ingress
	if err := json.Unmarshal(data, &ingress); err != nil {
		return Perception{}, fmt.Errorf("failed to unmarshal perception: %w", err)
	}

	return FromIngress(ingress)
}

func FromIngress(ingress Ingress) (Perception, error) {
	action := strings.TrimSpace(ingress.Action)
	if action == "" {
		return Perception{}, fmt.Errorf("perception action is required")
	}

	p := New(action, ingress.Content)
	if ingress.Metadata != nil {
		p.Image = ingress.Metadata.Image
		p.Description = ingress.Metadata.Description
	}
	return p, nil
}

// Ingress converts the perception back into its wire form.
func (p Perception) Ingress() Ingress {
	ingress := Ingress{Action: p.Action, Content: p.Content}
	if p.Image != "" || p.Description != "" {
		ingress.Metadata = &IngressMetadata{Image: p.Image, Description: p.Description}
	}
	return ingress
}
