package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/maheshrc27/postpilot/internal/models"
)

const facebookGraphURL = "https://graph.facebook.com/v21.0"

// FacebookAdapter posts to a Facebook Page feed. Credentials need a page
// access_token and page_id.
type FacebookAdapter struct {
	client *http.Client
}

func NewFacebookAdapter() *FacebookAdapter {
	return &FacebookAdapter{client: &http.Client{}}
}

func (fb *FacebookAdapter) Publish(ctx context.Context, content *Content, creds Credentials) (*PublishResult, error) {
	accessToken := creds.Get("access_token")
	pageID := creds.Get("page_id")
	if accessToken == "" || pageID == "" {
		return nil, fmt.Errorf("facebook credentials are incomplete")
	}

	data := url.Values{}
	data.Set("access_token", accessToken)

	var endpoint string
	switch content.ContentType {
	case models.ContentTypeText:
		endpoint = fmt.Sprintf("%s/%s/feed", facebookGraphURL, pageID)
		data.Set("message", content.Caption)
	case models.ContentTypeImage:
		if content.MediaURL == "" {
			return nil, ErrUnsupportedContent
		}
		endpoint = fmt.Sprintf("%s/%s/photos", facebookGraphURL, pageID)
		data.Set("url", content.MediaURL)
		data.Set("caption", content.Caption)
	case models.ContentTypeVideo:
		if content.MediaURL == "" {
			return nil, ErrUnsupportedContent
		}
		endpoint = fmt.Sprintf("%s/%s/videos", facebookGraphURL, pageID)
		data.Set("file_url", content.MediaURL)
		data.Set("description", content.Caption)
	default:
		return nil, ErrUnsupportedContent
	}

	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := fb.postForm(ctx, endpoint, data, &result); err != nil {
		return nil, err
	}

	externalID := result.PostID
	if externalID == "" {
		externalID = result.ID
	}
	if externalID == "" {
		return nil, fmt.Errorf("facebook returned no post id")
	}

	return &PublishResult{
		PostURL:    fmt.Sprintf("https://www.facebook.com/%s", externalID),
		ExternalID: externalID,
	}, nil
}

func (fb *FacebookAdapter) TestCredentials(ctx context.Context, creds Credentials) error {
	accessToken := creds.Get("access_token")
	pageID := creds.Get("page_id")
	if accessToken == "" || pageID == "" {
		return fmt.Errorf("facebook credentials are incomplete")
	}

	endpoint := fmt.Sprintf("%s/%s?fields=id,name&access_token=%s", facebookGraphURL, pageID, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := fb.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeGraphError(resp)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if result.ID == "" {
		return fmt.Errorf("facebook page token rejected")
	}
	return nil
}

func (fb *FacebookAdapter) postForm(ctx context.Context, endpoint string, data url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := fb.client.Do(req)
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
