// Package youtube wraps the Data API calls the pipeline needs: upload a
// private video, change its privacy, set a thumbnail.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"vod-automation/config"
	"vod-automation/dto"
)

const (
	uploadURL    = "https://www.googleapis.com/upload/youtube/v3/videos?part=snippet,status&uploadType=multipart"
	videosURL    = "https://www.googleapis.com/youtube/v3/videos?part=status"
	thumbnailURL = "https://www.googleapis.com/upload/youtube/v3/thumbnails/set"
)

type Client struct {
	cfg        config.YouTube
	httpClient *http.Client
}

func NewClient(cfg config.YouTube) *Client {
	return &Client{
		cfg: cfg,
		// Uploads run for minutes on full VODs.
		httpClient: &http.Client{Timeout: 60 * time.Minute},
	}
}

// Upload sends the file as a private video and returns the platform video id.
func (c *Client) Upload(ctx context.Context, filePath string, metadata dto.UploadMetadata) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	snippet := map[string]interface{}{
		"snippet": map[string]interface{}{
			"title":       metadata.Title,
			"description": metadata.Description,
			"tags":        metadata.Tags,
			"categoryId":  metadata.CategoryId,
		},
		"status": map[string]interface{}{
			"privacyStatus": metadata.PrivacyStatus,
		},
	}
	snippetJSON, err := json.Marshal(snippet)
	if err != nil {
		return "", err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return "", err
	}
	if _, err := metaPart.Write(snippetJSON); err != nil {
		return "", err
	}

	videoHeader := textproto.MIMEHeader{}
	videoHeader.Set("Content-Type", "video/mp4")
	videoPart, err := writer.CreatePart(videoHeader)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(videoPart, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("youtube upload returned %d", resp.StatusCode)
	}

	var result struct {
		Id string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Id, nil
}

// SetPrivacy flips the privacy status of an already-uploaded video.
func (c *Client) SetPrivacy(ctx context.Context, videoId, privacyStatus string) error {
	payload := map[string]interface{}{
		"id": videoId,
		"status": map[string]interface{}{
			"privacyStatus": privacyStatus,
		},
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, videosURL, bytes.NewReader(payloadJSON))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube privacy update returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) SetThumbnail(ctx context.Context, videoId, imagePath string) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, thumbnailURL+"?videoId="+videoId, file)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube thumbnail set returned %d", resp.StatusCode)
	}
	return nil
}
