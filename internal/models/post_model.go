package models

import "time"

type Post struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Title          string     `db:"title" json:"title"`
	Caption        string     `db:"caption" json:"caption"`
	ContentType    string     `db:"content_type" json:"content_type"`
	MediaURL       string     `db:"media_url" json:"media_url"`
	GeneratePrompt string     `db:"generate_prompt" json:"generate_prompt"`
	ScheduledAt    *time.Time `db:"scheduled_at" json:"scheduled_at"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// PlatformTask is the per-platform sub-unit of a Post. Once posted it is
// never re-attempted; failed tasks are retried only through an explicit
// new publish request.
type PlatformTask struct {
	ID           int64      `db:"id" json:"id"`
	PostID       int64      `db:"post_id" json:"post_id"`
	Platform     string     `db:"platform" json:"platform"`
	Status       string     `db:"status" json:"status"`
	PostURL      string     `db:"post_url" json:"post_url"`
	ExternalID   string     `db:"external_id" json:"external_id"`
	ErrorMessage string     `db:"error_message" json:"error_message"`
	PostedAt     *time.Time `db:"posted_at" json:"posted_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusDraft           = "draft"
	PostStatusPending         = "pending"
	PostStatusScheduled       = "scheduled"
	PostStatusProcessing      = "processing"
	PostStatusPosted          = "posted"
	PostStatusPartiallyPosted = "partially_posted"
	PostStatusFailed          = "failed"
)

const (
	TaskStatusPending = "pending"
	TaskStatusPosted  = "posted"
	TaskStatusFailed  = "failed"
)

const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
	ContentTypeVideo = "video"
)

const (
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformYoutube   = "youtube"
	PlatformLinkedin  = "linkedin"
)

func ValidContentType(ct string) bool {
	switch ct {
	case ContentTypeText, ContentTypeImage, ContentTypeVideo:
		return true
	}
	return false
}

func ValidPlatform(platform string) bool {
	switch platform {
	case PlatformInstagram, PlatformFacebook, PlatformYoutube, PlatformLinkedin:
		return true
	}
	return false
}
