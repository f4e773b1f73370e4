package webhook

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/gateway"
)

// EventKind is the closed set of provider event types
type EventKind int

const (
	// KindUnknown ...
	KindUnknown EventKind = iota

	// KindTokenValidated ...
	KindTokenValidated

	// KindMessageReceived ...
	KindMessageReceived
	// KindMessageSent ...
	KindMessageSent
	// KindMessageDelivered ...
	KindMessageDelivered
	// KindMessageFailed ...
	KindMessageFailed

	// KindCallRinging ...
	KindCallRinging
	// KindCallAnswered ...
	KindCallAnswered
	// KindCallCompleted ...
	KindCallCompleted

	// KindCallRecordingCompleted ...
	KindCallRecordingCompleted
	// KindCallSummaryCompleted ...
	KindCallSummaryCompleted
	// KindCallTranscriptCompleted ...
	KindCallTranscriptCompleted

	// KindMessageOther is any other message.<status> event, the object carries the status
	KindMessageOther
	// KindCallOther is any other call.<status> event, e.g. call.missed
	KindCallOther
)

var kindNames = map[string]EventKind{
	"token.validated":           KindTokenValidated,
	"message.received":          KindMessageReceived,
	"message.sent":              KindMessageSent,
	"message.delivered":         KindMessageDelivered,
	"message.failed":            KindMessageFailed,
	"call.ringing":              KindCallRinging,
	"call.answered":             KindCallAnswered,
	"call.completed":            KindCallCompleted,
	"call.recording.completed":  KindCallRecordingCompleted,
	"call.summary.completed":    KindCallSummaryCompleted,
	"call.transcript.completed": KindCallTranscriptCompleted,
}

// ParseKind maps listed types to their kind. Other single-level message.* and call.*
// types map to KindMessageOther and KindCallOther, everything else is KindUnknown.
func ParseKind(eventType string) EventKind {
	name := strings.ToLower(strings.TrimSpace(eventType))
	if kind, ok := kindNames[name]; ok {
		return kind
	}

	prefix, sub, found := strings.Cut(name, ".")
	if !found || sub == "" || strings.Contains(sub, ".") {
		return KindUnknown
	}
	switch prefix {
	case "message":
		return KindMessageOther
	case "call":
		return KindCallOther
	default:
		return KindUnknown
	}
}

// defaultStatus is used when the event object does not carry a status itself
func (k EventKind) defaultStatus() string {
	switch k {
	case KindMessageReceived:
		return model.MessageStatusReceived
	case KindMessageSent:
		return model.MessageStatusSent
	case KindMessageDelivered:
		return model.MessageStatusDelivered
	case KindMessageFailed:
		return model.MessageStatusFailed
	case KindCallRinging:
		return "ringing"
	case KindCallAnswered:
		return "in-progress"
	case KindCallCompleted:
		return "completed"
	default:
		return ""
	}
}

// Envelope is the outer JSON of every webhook delivery
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Data      struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type recordingObject struct {
	CallID string `json:"callId"`
	Media  []struct {
		URL      string `json:"url"`
		Duration int64  `json:"duration"`
	} `json:"media"`
}

type summaryObject struct {
	CallID    string   `json:"callId"`
	Summary   []string `json:"summary"`
	NextSteps []string `json:"nextSteps"`
}

type transcriptObject struct {
	CallID   string `json:"callId"`
	Dialogue []struct {
		Identifier string  `json:"identifier"`
		UserID     string  `json:"userId"`
		Content    string  `json:"content"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
	} `json:"dialogue"`
}

func (o recordingObject) patch() model.ActivityMetadata {
	var m model.ActivityMetadata
	if len(o.Media) > 0 {
		m.RecordingURL = o.Media[0].URL
		m.DurationSeconds = o.Media[0].Duration
	}
	return m
}

func (o transcriptObject) patch() model.ActivityMetadata {
	lines := make([]model.TranscriptLine, 0, len(o.Dialogue))
	for _, d := range o.Dialogue {
		speaker := d.Identifier
		if speaker == "" {
			speaker = d.UserID
		}
		lines = append(lines, model.TranscriptLine{
			Speaker: speaker,
			Content: d.Content,
			Start:   d.Start,
			End:     d.End,
		})
	}
	return model.ActivityMetadata{Transcript: lines}
}

func withDefaultStatus(msg gateway.Message, kind EventKind) gateway.Message {
	if msg.Status == "" {
		msg.Status = kind.defaultStatus()
	}
	return msg
}
