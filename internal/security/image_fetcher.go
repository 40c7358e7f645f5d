package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"
)

// 画像取得の既定値
const (
	DefaultImageMaxSize = 5 * 1024 * 1024
	DefaultImageTimeout = 10 * time.Second
)

// ErrInvalidImage は取得した内容が診断に使えない画像であることを表す。
var ErrInvalidImage = errors.New("invalid image")

// allowedImageTypes は診断に送る画像として受け付けるMIMEタイプ。
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Image は取得した画像。
type Image struct {
	Data     []byte
	MIMEType string
}

// ImageFetcher はユーザー指定のURLから画像をSSRF対策付きで取得する。
type ImageFetcher struct {
	guard   SSRFGuardService
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
}

// NewImageFetcher はImageFetcherを生成する。
// maxSize・timeoutが0以下の場合は既定値を使う。
func NewImageFetcher(guard SSRFGuardService, timeout time.Duration, maxSize int64, logger *slog.Logger) *ImageFetcher {
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	if maxSize <= 0 {
		maxSize = DefaultImageMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageFetcher{
		guard:   guard,
		client:  guard.NewSafeClient(timeout),
		maxSize: maxSize,
		logger:  logger,
	}
}

// Fetch は画像を取得する。
// URLの検証失敗はErrBlockedURL、画像でない・大きすぎる場合はErrInvalidImageを返す。
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	if err := f.guard.ValidateURL(rawURL); err != nil {
		f.logger.Warn("画像取得: URLを拒否しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("画像取得: HTTPリクエストに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidImage, resp.StatusCode)
	}

	mimeType := mediaType(resp.Header.Get("Content-Type"))
	if !allowedImageTypes[mimeType] {
		return nil, fmt.Errorf("%w: content type %q", ErrInvalidImage, mimeType)
	}

	if resp.ContentLength > f.maxSize {
		return nil, fmt.Errorf("%w: size %d exceeds %d bytes", ErrInvalidImage, resp.ContentLength, f.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: size exceeds %d bytes", ErrInvalidImage, f.maxSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidImage)
	}

	return &Image{Data: data, MIMEType: mimeType}, nil
}

// mediaType はContent-Typeヘッダーからパラメータを除いたメディアタイプを返す。
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}
