package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

const instagramGraphURL = "https://graph.instagram.com/v21.0"

// InstagramAdapter publishes through the Instagram Graph API container
// flow: create a media container, then publish it. Credentials need
// access_token and ig_user_id.
type InstagramAdapter struct {
	client *http.Client
}

func NewInstagramAdapter() *InstagramAdapter {
	return &InstagramAdapter{client: &http.Client{}}
}

func (ig *InstagramAdapter) Publish(ctx context.Context, content *Content, creds Credentials) (*PublishResult, error) {
	accessToken := creds.Get("access_token")
	igUserID := creds.Get("ig_user_id")
	if accessToken == "" || igUserID == "" {
		return nil, fmt.Errorf("instagram credentials are incomplete")
	}

	if content.MediaURL == "" {
		// Instagram has no text-only feed post.
		return nil, ErrUnsupportedContent
	}

	containerID, err := ig.createContainer(ctx, content, accessToken, igUserID)
	if err != nil {
		return nil, err
	}

	if content.ContentType == models.ContentTypeVideo {
		if err := ig.waitForContainer(ctx, containerID, accessToken); err != nil {
			return nil, err
		}
	}

	mediaID, err := ig.publishContainer(ctx, containerID, accessToken, igUserID)
	if err != nil {
		return nil, err
	}

	permalink, err := ig.getPermalink(ctx, mediaID, accessToken)
	if err != nil {
		slog.Info(err.Error())
		permalink = fmt.Sprintf("https://www.instagram.com/p/%s", mediaID)
	}

	return &PublishResult{PostURL: permalink, ExternalID: mediaID}, nil
}

func (ig *InstagramAdapter) TestCredentials(ctx context.Context, creds Credentials) error {
	accessToken := creds.Get("access_token")
	if accessToken == "" {
		return fmt.Errorf("instagram access token is missing")
	}

	endpoint := fmt.Sprintf("%s/me?fields=id,username&access_token=%s", instagramGraphURL, url.QueryEscape(accessToken))
	var result struct {
		ID string `json:"id"`
	}
	if err := ig.getJSON(ctx, endpoint, &result); err != nil {
		return err
	}
	if result.ID == "" {
		return fmt.Errorf("instagram token rejected")
	}
	return nil
}

func (ig *InstagramAdapter) createContainer(ctx context.Context, content *Content, accessToken, igUserID string) (string, error) {
	data := url.Values{}
	data.Set("access_token", accessToken)
	data.Set("caption", content.Caption)

	switch content.ContentType {
	case models.ContentTypeImage:
		data.Set("image_url", content.MediaURL)
	case models.ContentTypeVideo:
		data.Set("media_type", "REELS")
		data.Set("video_url", content.MediaURL)
	default:
		return "", ErrUnsupportedContent
	}

	endpoint := fmt.Sprintf("%s/%s/media", instagramGraphURL, igUserID)
	var result struct {
		ID string `json:"id"`
	}
	if err := ig.postForm(ctx, endpoint, data, &result); err != nil {
		return "", fmt.Errorf("failed to create media container: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("instagram returned no container id")
	}
	return result.ID, nil
}

// waitForContainer polls until Instagram finishes ingesting a video
// container. The overall deadline comes from the dispatch context.
func (ig *InstagramAdapter) waitForContainer(ctx context.Context, containerID, accessToken string) error {
	endpoint := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", instagramGraphURL, containerID, url.QueryEscape(accessToken))

	for {
		var result struct {
			StatusCode string `json:"status_code"`
		}
		if err := ig.getJSON(ctx, endpoint, &result); err != nil {
			return err
		}

		switch result.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("instagram container processing failed: %s", result.StatusCode)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (ig *InstagramAdapter) publishContainer(ctx context.Context, containerID, accessToken, igUserID string) (string, error) {
	data := url.Values{}
	data.Set("access_token", accessToken)
	data.Set("creation_id", containerID)

	endpoint := fmt.Sprintf("%s/%s/media_publish", instagramGraphURL, igUserID)
	var result struct {
		ID string `json:"id"`
	}
	if err := ig.postForm(ctx, endpoint, data, &result); err != nil {
		return "", fmt.Errorf("failed to publish media container: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("instagram returned no media id")
	}
	return result.ID, nil
}

func (ig *InstagramAdapter) getPermalink(ctx context.Context, mediaID, accessToken string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", instagramGraphURL, mediaID, url.QueryEscape(accessToken))
	var result struct {
		Permalink string `json:"permalink"`
	}
	if err := ig.getJSON(ctx, endpoint, &result); err != nil {
		return "", err
	}
	return result.Permalink, nil
}

func (ig *InstagramAdapter) postForm(ctx context.Context, endpoint string, data url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ig.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeGraphError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (ig *InstagramAdapter) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeGraphError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeGraphError(resp *http.Response) error {
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
		return fmt.Errorf("graph api error: status %d", resp.StatusCode)
	}
	return fmt.Errorf("graph api error: %s (code %d)", body.Error.Message, body.Error.Code)
}
