package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/maheshrc27/postpilot/internal/models"
)

// YoutubeAdapter uploads videos with the YouTube Data API. Credentials
// need an OAuth access_token (refreshed out of band by the token refresh
// job). YouTube carries video content only.
type YoutubeAdapter struct {
	client *http.Client
}

func NewYoutubeAdapter() *YoutubeAdapter {
	return &YoutubeAdapter{client: &http.Client{}}
}

func (yt *YoutubeAdapter) Publish(ctx context.Context, content *Content, creds Credentials) (*PublishResult, error) {
	if content.ContentType != models.ContentTypeVideo || content.MediaURL == "" {
		return nil, ErrUnsupportedContent
	}

	accessToken := creds.Get("access_token")
	if accessToken == "" {
		return nil, fmt.Errorf("youtube access token is missing")
	}

	service, err := yt.newService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	tempFile, err := yt.downloadVideo(ctx, content.MediaURL)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer file.Close()

	title := content.Title
	if title == "" {
		title = content.Caption
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: content.Caption,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(file).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("youtube upload failed: %w", err)
	}

	return &PublishResult{
		PostURL:    fmt.Sprintf("https://youtu.be/%s", response.Id),
		ExternalID: response.Id,
	}, nil
}

func (yt *YoutubeAdapter) TestCredentials(ctx context.Context, creds Credentials) error {
	accessToken := creds.Get("access_token")
	if accessToken == "" {
		return fmt.Errorf("youtube access token is missing")
	}

	service, err := yt.newService(ctx, accessToken)
	if err != nil {
		return err
	}

	_, err = service.Channels.List([]string{"id"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("youtube token rejected: %w", err)
	}
	return nil
}

func (yt *YoutubeAdapter) newService(ctx context.Context, accessToken string) (*youtube.Service, error) {
	token := &oauth2.Token{AccessToken: accessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error creating youtube service: %w", err)
	}
	return service, nil
}

func (yt *YoutubeAdapter) downloadVideo(ctx context.Context, mediaURL string) (string, error) {
	tempFile, err := os.CreateTemp("", "video-*.mp4")
	if err != nil {
		return "", fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", err
	}

	response, err := yt.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading video: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected response status: %d", response.StatusCode)
	}

	if _, err := io.Copy(tempFile, response.Body); err != nil {
		return "", fmt.Errorf("error saving video to temporary file: %w", err)
	}

	return tempFile.Name(), nil
}
