// Package dispatcher executes one post's full publish attempt across all
// of its target platforms. A dispatch claims the post, resolves one
// credential per platform, invokes the matching adapter, and writes the
// aggregate outcome back to the post record.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/adapter"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

// ContentGenerator produces a local media file from a prompt. It is one
// blocking external call with its own deadline.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt, contentType string) (string, error)
}

// MediaUploader pushes a local file to object storage and returns its
// public URL.
type MediaUploader interface {
	UploadFile(ctx context.Context, localPath string) (string, error)
}

// VideoRepairer validates a video file and rewrites it if the container
// is broken. It returns the path to a playable file.
type VideoRepairer interface {
	EnsurePlayable(ctx context.Context, localPath string) (string, error)
}

type Dispatcher struct {
	cfg       config.Dispatch
	secretKey string
	pr        repository.PostRepository
	tr        repository.PlatformTaskRepository
	cr        repository.CredentialRepository
	registry  *adapter.Registry
	generator ContentGenerator
	uploader  MediaUploader
	repairer  VideoRepairer
}

func New(
	cfg config.Dispatch,
	secretKey string,
	pr repository.PostRepository,
	tr repository.PlatformTaskRepository,
	cr repository.CredentialRepository,
	registry *adapter.Registry,
	generator ContentGenerator,
	uploader MediaUploader,
	repairer VideoRepairer) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		secretKey: secretKey,
		pr:        pr,
		tr:        tr,
		cr:        cr,
		registry:  registry,
		generator: generator,
		uploader:  uploader,
		repairer:  repairer,
	}
}

// Dispatch runs one publish attempt for the post. Each platform gets
// exactly one try; per-platform errors become task data and never abort
// the loop. Only the claim race and pre-platform failures (missing post,
// content generation) surface as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, postID int64) (*transfer.DispatchOutcome, error) {
	post, err := d.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	claimed, err := d.pr.ClaimForDispatch(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyProcessed
	}

	if post.MediaURL == "" && post.GeneratePrompt != "" {
		mediaURL, err := d.generateContent(ctx, post)
		if err != nil {
			msg := err.Error()
			if err := d.tr.FailPending(ctx, postID, msg); err != nil {
				slog.Info(err.Error())
			}
			if err := d.pr.UpdateStatus(ctx, models.PostStatusFailed, postID); err != nil {
				slog.Info(err.Error())
			}
			return nil, fmt.Errorf("%w: %s", ErrContentGeneration, msg)
		}
		post.MediaURL = mediaURL
	}

	tasks, err := d.tr.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	maxConcurrent := d.cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	semaphore := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	for _, task := range tasks {
		// Posted tasks are final. A re-dispatch only touches the rest,
		// so an earlier success is never published twice.
		if task.Status == models.TaskStatusPosted {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(task *models.PlatformTask) {
			defer wg.Done()
			defer func() { <-semaphore }()
			d.publishToPlatform(ctx, post, task)
		}(task)
	}
	wg.Wait()

	tasks, err = d.tr.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	status := aggregateStatus(tasks)
	if err := d.pr.UpdateStatus(ctx, status, postID); err != nil {
		return nil, err
	}

	outcome := &transfer.DispatchOutcome{PostID: postID, Status: status}
	for _, task := range tasks {
		outcome.Results = append(outcome.Results, transfer.PlatformResult{
			Platform:     task.Platform,
			Status:       task.Status,
			PostURL:      task.PostURL,
			ExternalID:   task.ExternalID,
			ErrorMessage: task.ErrorMessage,
		})
	}
	return outcome, nil
}

func (d *Dispatcher) publishToPlatform(ctx context.Context, post *models.Post, task *models.PlatformTask) {
	cred, err := d.cr.GetActive(ctx, post.UserID, task.Platform)
	if err != nil || cred == nil {
		d.failTask(ctx, task, "no credentials configured for this platform")
		return
	}

	creds, err := d.decryptCredentials(cred)
	if err != nil {
		d.failTask(ctx, task, fmt.Sprintf("unable to read credentials: %v", err))
		return
	}

	a, ok := d.registry.Lookup(task.Platform)
	if !ok {
		d.failTask(ctx, task, fmt.Sprintf("platform %s is not supported", task.Platform))
		return
	}

	content := &adapter.Content{
		ContentType: post.ContentType,
		Title:       post.Title,
		Caption:     post.Caption,
		MediaURL:    post.MediaURL,
	}

	publishCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()

	result, err := a.Publish(publishCtx, content, creds)
	if err != nil {
		slog.Info("publish failed", "platform", task.Platform, "post_id", post.ID, "error", err.Error())
		d.failTask(ctx, task, err.Error())
		return
	}

	if err := d.tr.MarkPosted(ctx, task.ID, result.PostURL, result.ExternalID, time.Now().UTC()); err != nil {
		slog.Info(err.Error())
	}
}

func (d *Dispatcher) failTask(ctx context.Context, task *models.PlatformTask, message string) {
	if err := d.tr.MarkFailed(ctx, task.ID, message); err != nil {
		slog.Info(err.Error())
	}
}

func (d *Dispatcher) generateContent(ctx context.Context, post *models.Post) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, d.cfg.GenerateTimeout)
	defer cancel()

	localPath, err := d.generator.Generate(genCtx, post.GeneratePrompt, post.ContentType)
	if err != nil {
		return "", err
	}

	if post.ContentType == models.ContentTypeVideo {
		repaired, err := d.repairer.EnsurePlayable(ctx, localPath)
		if err != nil {
			return "", fmt.Errorf("generated video is not playable: %w", err)
		}
		localPath = repaired
	}

	mediaURL, err := d.uploader.UploadFile(ctx, localPath)
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}

	if err := d.pr.SetMediaURL(ctx, post.ID, mediaURL); err != nil {
		return "", err
	}
	return mediaURL, nil
}

func (d *Dispatcher) decryptCredentials(cred *models.Credential) (adapter.Credentials, error) {
	plaintext, err := utils.Decrypt(cred.CredentialData, []byte(d.secretKey))
	if err != nil {
		return nil, err
	}

	var data map[string]string
	if err := json.Unmarshal([]byte(plaintext), &data); err != nil {
		return nil, err
	}
	return adapter.Credentials(data), nil
}

// aggregateStatus folds per-platform task states into the post status:
// every task posted means posted, none posted means failed, anything in
// between is partially_posted.
func aggregateStatus(tasks []*models.PlatformTask) string {
	posted := 0
	for _, task := range tasks {
		if task.Status == models.TaskStatusPosted {
			posted++
		}
	}

	switch {
	case len(tasks) > 0 && posted == len(tasks):
		return models.PostStatusPosted
	case posted > 0:
		return models.PostStatusPartiallyPosted
	default:
		return models.PostStatusFailed
	}
}
