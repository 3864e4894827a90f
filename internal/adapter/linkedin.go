package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/maheshrc27/postpilot/internal/models"
)

const linkedinAPIURL = "https://api.linkedin.com/v2"

// LinkedinAdapter publishes UGC posts. Credentials need access_token and
// person_urn. Image and video posts go through the asset register/upload
// flow before the post itself is created.
type LinkedinAdapter struct {
	client *http.Client
}

func NewLinkedinAdapter() *LinkedinAdapter {
	return &LinkedinAdapter{client: &http.Client{}}
}

func (li *LinkedinAdapter) Publish(ctx context.Context, content *Content, creds Credentials) (*PublishResult, error) {
	accessToken := creds.Get("access_token")
	personURN := creds.Get("person_urn")
	if accessToken == "" || personURN == "" {
		return nil, fmt.Errorf("linkedin credentials are incomplete")
	}

	var assetURN string
	if content.ContentType == models.ContentTypeImage || content.ContentType == models.ContentTypeVideo {
		if content.MediaURL == "" {
			return nil, ErrUnsupportedContent
		}
		urn, err := li.uploadAsset(ctx, content, accessToken, personURN)
		if err != nil {
			return nil, err
		}
		assetURN = urn
	}

	postID, err := li.createPost(ctx, content, accessToken, personURN, assetURN)
	if err != nil {
		return nil, err
	}

	return &PublishResult{
		PostURL:    fmt.Sprintf("https://www.linkedin.com/feed/update/%s", postID),
		ExternalID: postID,
	}, nil
}

func (li *LinkedinAdapter) TestCredentials(ctx context.Context, creds Credentials) error {
	accessToken := creds.Get("access_token")
	if accessToken == "" {
		return fmt.Errorf("linkedin access token is missing")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, linkedinAPIURL+"/me", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := li.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("linkedin token rejected: status %d", resp.StatusCode)
	}
	return nil
}

func (li *LinkedinAdapter) createPost(ctx context.Context, content *Content, accessToken, personURN, assetURN string) (string, error) {
	shareCategory := "NONE"
	switch content.ContentType {
	case models.ContentTypeImage:
		shareCategory = "IMAGE"
	case models.ContentTypeVideo:
		shareCategory = "VIDEO"
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]string{"text": content.Caption},
		"shareMediaCategory": shareCategory,
	}
	if assetURN != "" {
		shareContent["media"] = []map[string]any{
			{
				"status": "READY",
				"media":  assetURN,
				"title":  map[string]string{"text": content.Title},
			},
		}
	}

	body := map[string]any{
		"author":         personURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedinAPIURL+"/ugcPosts", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := li.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", decodeLinkedinError(resp)
	}

	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		return id, nil
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.ID == "" {
		return "", fmt.Errorf("linkedin returned no post id")
	}
	return result.ID, nil
}

func (li *LinkedinAdapter) uploadAsset(ctx context.Context, content *Content, accessToken, personURN string) (string, error) {
	recipe := "urn:li:digitalmediaRecipe:feedshare-image"
	if content.ContentType == models.ContentTypeVideo {
		recipe = "urn:li:digitalmediaRecipe:feedshare-video"
	}

	registerBody := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{recipe},
			"owner":   personURN,
			"serviceRelationships": []map[string]string{
				{"relationshipType": "OWNER", "identifier": "urn:li:userGeneratedContent"},
			},
		},
	}

	payload, err := json.Marshal(registerBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedinAPIURL+"/assets?action=registerUpload", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := li.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", decodeLinkedinError(resp)
	}

	var registered struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism map[string]struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return "", fmt.Errorf("failed to decode register upload response: %w", err)
	}

	var uploadURL string
	for _, m := range registered.Value.UploadMechanism {
		if m.UploadURL != "" {
			uploadURL = m.UploadURL
			break
		}
	}
	if uploadURL == "" || registered.Value.Asset == "" {
		return "", fmt.Errorf("linkedin register upload returned no upload url")
	}

	media, err := li.fetchMedia(ctx, content.MediaURL)
	if err != nil {
		return "", err
	}

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(media))
	if err != nil {
		return "", err
	}
	uploadReq.Header.Set("Authorization", "Bearer "+accessToken)

	uploadResp, err := li.client.Do(uploadReq)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer uploadResp.Body.Close()

	if uploadResp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("linkedin asset upload failed: status %d", uploadResp.StatusCode)
	}

	return registered.Value.Asset, nil
}

func (li *LinkedinAdapter) fetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := li.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch media: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func decodeLinkedinError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return fmt.Errorf("linkedin api error: status %d", resp.StatusCode)
	}
	return fmt.Errorf("linkedin api error: %s", body.Message)
}
