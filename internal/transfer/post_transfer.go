package transfer

import "time"

type PostCreation struct {
	Title          string `json:"title"`
	Caption        string `json:"caption"`
	ContentType    string `json:"content_type"`
	Platforms      string `json:"platforms"`
	ScheduledAt    string `json:"scheduled_at"`
	GeneratePrompt string `json:"generate_prompt"`
}

// PlatformResult is the per-platform outcome of one dispatch.
type PlatformResult struct {
	Platform     string `json:"platform"`
	Status       string `json:"status"`
	PostURL      string `json:"post_url,omitempty"`
	ExternalID   string `json:"external_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// DispatchOutcome aggregates the results of one full publish attempt.
type DispatchOutcome struct {
	PostID  int64            `json:"post_id"`
	Status  string           `json:"status"`
	Results []PlatformResult `json:"results"`
}

type PostStatus struct {
	PostID      int64            `json:"post_id"`
	Status      string           `json:"status"`
	ScheduledAt *time.Time       `json:"scheduled_at,omitempty"`
	Platforms   []PlatformResult `json:"platforms"`
}
