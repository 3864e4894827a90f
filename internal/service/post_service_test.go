package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

func TestCreatePostValidation(t *testing.T) {
	s := &postService{}

	tests := []struct {
		name string
		pc   *transfer.PostCreation
	}{
		{"missing body", nil},
		{"empty caption and prompt", &transfer.PostCreation{
			ContentType: models.ContentTypeText,
			Platforms:   `["facebook"]`,
		}},
		{"bad content type", &transfer.PostCreation{
			Caption:     "hello",
			ContentType: "audio",
			Platforms:   `["facebook"]`,
		}},
		{"platforms not json", &transfer.PostCreation{
			Caption:     "hello",
			ContentType: models.ContentTypeText,
			Platforms:   "facebook",
		}},
		{"no platforms", &transfer.PostCreation{
			Caption:     "hello",
			ContentType: models.ContentTypeText,
			Platforms:   `[]`,
		}},
		{"unknown platform", &transfer.PostCreation{
			Caption:     "hello",
			ContentType: models.ContentTypeText,
			Platforms:   `["myspace"]`,
		}},
		{"duplicate platform", &transfer.PostCreation{
			Caption:     "hello",
			ContentType: models.ContentTypeText,
			Platforms:   `["facebook","facebook"]`,
		}},
		{"bad scheduled time", &transfer.PostCreation{
			Caption:     "hello",
			ContentType: models.ContentTypeText,
			Platforms:   `["facebook"]`,
			ScheduledAt: "tomorrow at noon",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.CreatePost(context.Background(), 1, tt.pc, nil)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestParsePlatforms(t *testing.T) {
	platforms, err := parsePlatforms(`["facebook","youtube"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"facebook", "youtube"}, platforms)
}

func TestParseScheduledAt(t *testing.T) {
	t.Run("empty means immediate", func(t *testing.T) {
		at, err := parseScheduledAt("")
		require.NoError(t, err)
		assert.Nil(t, at)
	})

	t.Run("now means immediate", func(t *testing.T) {
		at, err := parseScheduledAt("now")
		require.NoError(t, err)
		assert.Nil(t, at)
	})

	t.Run("past means immediate", func(t *testing.T) {
		at, err := parseScheduledAt(time.Now().UTC().Add(-time.Hour).Format(time.RFC3339))
		require.NoError(t, err)
		assert.Nil(t, at)
	})

	t.Run("future rfc3339 normalized to utc", func(t *testing.T) {
		in := time.Now().Add(2 * time.Hour).Format(time.RFC3339)
		at, err := parseScheduledAt(in)
		require.NoError(t, err)
		require.NotNil(t, at)
		assert.Equal(t, time.UTC, at.Location())
	})

	t.Run("future datetime-local format", func(t *testing.T) {
		in := time.Now().UTC().Add(2 * time.Hour).Format("2006-01-02T15:04")
		at, err := parseScheduledAt(in)
		require.NoError(t, err)
		require.NotNil(t, at)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := parseScheduledAt("next tuesday")
		assert.ErrorIs(t, err, ErrValidation)
	})
}
