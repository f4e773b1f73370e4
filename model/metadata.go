package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ActivityMetadata is the structured sidecar stored in the activity metadata column
type ActivityMetadata struct {
	PhoneNumberID          string   `json:"phone_number_id,omitempty"`
	UserID                 string   `json:"user_id,omitempty"`
	ConversationExternalID string   `json:"conversation_external_id,omitempty"`
	From                   string   `json:"from,omitempty"`
	To                     []string `json:"to,omitempty"`
	MediaURLs              []string `json:"media_urls,omitempty"`

	CampaignID int64   `json:"campaign_id,omitempty"`
	Variant    Variant `json:"variant,omitempty"`

	ErrorDetail    string         `json:"error_detail,omitempty"`
	BounceCategory BounceCategory `json:"bounce_category,omitempty"`

	DurationSeconds int64            `json:"duration_seconds,omitempty"`
	RecordingURL    string           `json:"recording_url,omitempty"`
	Summary         []string         `json:"summary,omitempty"`
	NextSteps       []string         `json:"next_steps,omitempty"`
	Transcript      []TranscriptLine `json:"transcript,omitempty"`

	Source string `json:"source,omitempty"` // webhook or reconciliation
}

// TranscriptLine ...
type TranscriptLine struct {
	Speaker string  `json:"speaker"`
	Content string  `json:"content"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Merge applies a shallow merge: every non-zero field of patch replaces the
// field in m, slices are replaced as a whole and never appended.
func (m ActivityMetadata) Merge(patch ActivityMetadata) ActivityMetadata {
	result := m
	mergeString(&result.PhoneNumberID, patch.PhoneNumberID)
	mergeString(&result.UserID, patch.UserID)
	mergeString(&result.ConversationExternalID, patch.ConversationExternalID)
	mergeString(&result.From, patch.From)
	mergeStrings(&result.To, patch.To)
	mergeStrings(&result.MediaURLs, patch.MediaURLs)

	if patch.CampaignID != 0 {
		result.CampaignID = patch.CampaignID
	}
	if patch.Variant != "" {
		result.Variant = patch.Variant
	}

	mergeString(&result.ErrorDetail, patch.ErrorDetail)
	if patch.BounceCategory != BounceNone {
		result.BounceCategory = patch.BounceCategory
	}

	if patch.DurationSeconds != 0 {
		result.DurationSeconds = patch.DurationSeconds
	}
	mergeString(&result.RecordingURL, patch.RecordingURL)
	mergeStrings(&result.Summary, patch.Summary)
	mergeStrings(&result.NextSteps, patch.NextSteps)
	if len(patch.Transcript) > 0 {
		result.Transcript = patch.Transcript
	}
	mergeString(&result.Source, patch.Source)
	return result
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeStrings(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

// Scan implements sql.Scanner
func (m *ActivityMetadata) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*m = ActivityMetadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("model: cannot scan %T into ActivityMetadata", value)
	}
	if len(data) == 0 {
		*m = ActivityMetadata{}
		return nil
	}
	var result ActivityMetadata
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("model: invalid activity metadata: %w", err)
	}
	*m = result
	return nil
}

// Value implements driver.Valuer
func (m ActivityMetadata) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return data, nil
}
