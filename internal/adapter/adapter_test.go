package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubAdapter struct{}

func (stubAdapter) Publish(ctx context.Context, content *Content, creds Credentials) (*PublishResult, error) {
	return &PublishResult{}, nil
}

func (stubAdapter) TestCredentials(ctx context.Context, creds Credentials) error {
	return nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("facebook", stubAdapter{})

	a, ok := r.Lookup("facebook")
	assert.True(t, ok)
	assert.NotNil(t, a)

	_, ok = r.Lookup("tiktok")
	assert.False(t, ok)
}

func TestRegistryIgnoresEmptyRegistration(t *testing.T) {
	r := NewRegistry()
	r.Register("", stubAdapter{})
	r.Register("facebook", nil)

	assert.Empty(t, r.Platforms())
}

func TestRegistryPlatformsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("youtube", stubAdapter{})
	r.Register("facebook", stubAdapter{})
	r.Register("instagram", stubAdapter{})

	assert.Equal(t, []string{"facebook", "instagram", "youtube"}, r.Platforms())
}

func TestCredentialsGet(t *testing.T) {
	creds := Credentials{"access_token": "tok"}
	assert.Equal(t, "tok", creds.Get("access_token"))
	assert.Equal(t, "", creds.Get("missing"))

	var none Credentials
	assert.Equal(t, "", none.Get("access_token"))
}
