package gateway

import (
	"strings"
	"time"
)

// Message is a provider message object, shared by the listing API and webhook payloads
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	PhoneNumberID  string    `json:"phoneNumberId"`
	UserID         string    `json:"userId"`
	Direction      string    `json:"direction"`
	From           string    `json:"from"`
	To             []string  `json:"to"`
	Text           string    `json:"text"`
	Body           string    `json:"body"`
	Status         string    `json:"status"`
	ErrorMessage   string    `json:"errorMessage"`
	ErrorCode      string    `json:"errorCode"`
	MediaURLs      []string  `json:"mediaUrls"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Content returns the message text, some payloads use body instead of text
func (m Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Body
}

// IsInbound ...
func (m Message) IsInbound() bool {
	return isInbound(m.Direction)
}

// Call is a provider call object
type Call struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	PhoneNumberID  string    `json:"phoneNumberId"`
	UserID         string    `json:"userId"`
	Direction      string    `json:"direction"`
	From           string    `json:"from"`
	To             []string  `json:"to"`
	Participants   []string  `json:"participants"`
	Status         string    `json:"status"`
	Duration       int64     `json:"duration"`
	CreatedAt      time.Time `json:"createdAt"`
	AnsweredAt     time.Time `json:"answeredAt"`
	CompletedAt    time.Time `json:"completedAt"`
}

// IsInbound ...
func (c Call) IsInbound() bool {
	return isInbound(c.Direction)
}

func isInbound(direction string) bool {
	switch strings.ToLower(direction) {
	case "incoming", "inbound":
		return true
	default:
		return false
	}
}

// Conversation is a provider conversation object
type Conversation struct {
	ID             string    `json:"id"`
	PhoneNumberID  string    `json:"phoneNumberId"`
	Participants   []string  `json:"participants"`
	Name           string    `json:"name"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ListParams for the paginated listing endpoints
type ListParams struct {
	Cursor        string
	Limit         int
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// MessagePage ...
type MessagePage struct {
	Data   []Message `json:"data"`
	Cursor *string   `json:"cursor"`
}

// ConversationPage ...
type ConversationPage struct {
	Data   []Conversation `json:"data"`
	Cursor *string        `json:"cursor"`
}

// SendRequest ...
type SendRequest struct {
	To        []string `json:"to"`
	From      string   `json:"from"`
	Content   string   `json:"content"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// SendResult ...
type SendResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
