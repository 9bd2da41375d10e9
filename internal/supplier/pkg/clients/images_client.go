package clients

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"suppliersync/pkg/middleware"
)

const maxImageSize = 20 << 20

// ImageSaver stores downloaded bytes under a key and returns the local path.
type ImageSaver interface {
	Save(key, ext string, r io.Reader) (string, error)
}

// MediaClient скачивает изображения товаров в локальное хранилище.
type MediaClient struct {
	BaseClient
	store ImageSaver
}

func NewImageClient(store ImageSaver, timeout time.Duration, userAgent string, writer io.Writer) *MediaClient {
	base := NewBaseClient("", timeout, writer, "[ MediaClient ]", middleware.SupplierMetrics("images"))
	base.UserAgent = userAgent
	return &MediaClient{BaseClient: *base, store: store}
}

// FetchImage downloads imageURL and stores it under key. It makes one
// attempt; callers wrap it in their own retry policy.
func (c *MediaClient) FetchImage(ctx context.Context, imageURL, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.execute(ctx, req)
	if err != nil {
		return "", fmt.Errorf("image %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	ext := imageExtension(resp.Header.Get("Content-Type"), imageURL)
	localPath, err := c.store.Save(key, ext, io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return "", err
	}
	c.log.Log("saved %s -> %s", imageURL, localPath)
	return localPath, nil
}

// imageExtension prefers the URL's own extension, then the content type.
func imageExtension(contentType, rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		switch ext := strings.ToLower(path.Ext(u.Path)); ext {
		case ".jpg", ".jpeg", ".png", ".gif", ".webp":
			return ext
		}
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".jpg"
	}
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}
