package ai

import (
	"encoding/base64"
	"encoding/json"
)

// Role identifies the author of a conversation turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. A user turn may carry an image; the
// image bytes are sent to the provider but only ImageRef is serialized.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Image     []byte `json:"-"`
	ImageMIME string `json:"-"`
	ImageRef  string `json:"image,omitempty"`
}

// HasImage reports whether the turn carries image bytes.
func (m Message) HasImage() bool {
	return len(m.Image) > 0
}

func (m Message) mime() string {
	if m.ImageMIME == "" {
		return "image/jpeg"
	}
	return m.ImageMIME
}

func (m Message) dataURL() string {
	return "data:" + m.mime() + ";base64," + base64.StdEncoding.EncodeToString(m.Image)
}

// Conversation is an append-only sequence of turns owned by a single run.
// It is not safe for concurrent use.
type Conversation struct {
	messages []Message
}

// Append adds turns to the end of the conversation
func (c *Conversation) Append(msgs ...Message) {
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy of the turns so far
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of turns
func (c *Conversation) Len() int {
	return len(c.messages)
}

// MarshalJSON encodes the conversation as a list of turns
func (c *Conversation) MarshalJSON() ([]byte, error) {
	if c.messages == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.messages)
}

// limitImages drops image bytes from all but the newest max image-bearing
// turns. max <= 0 keeps every image.
func limitImages(msgs []Message, max int) []Message {
	if max <= 0 {
		return msgs
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)

	kept := 0
	for i := len(out) - 1; i >= 0; i-- {
		if !out[i].HasImage() {
			continue
		}
		if kept < max {
			kept++
			continue
		}
		out[i].Image = nil
	}
	return out
}
