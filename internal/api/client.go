package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"lifelog/internal/media"
)

// Client talks to the remote journal service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// UploadResult is the upload response: the canonical server-side
// filename plus an initial signed URL whose expiry is embedded in the
// URL itself.
type UploadResult struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Path     string `json:"path"`
}

// SignedMedia is one element of a sign response. Expires is an absolute
// timestamp in milliseconds.
type SignedMedia struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Expires  int64  `json:"expires"`
}

type signRequest struct {
	Filenames []string `json:"filenames"`
	ExpiryMs  int64    `json:"expiryMs,omitempty"`
}

// UploadImage transfers one normalized file as multipart form data.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/media", &body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := c.doRequest(req)
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return UploadResult{}, responseError("upload", resp)
	}
	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	if result.Filename == "" {
		return UploadResult{}, fmt.Errorf("upload response missing filename")
	}
	return result, nil
}

// SignMedia requests fresh signed URLs for a batch of filenames in a
// single call. A zero expiry lets the server pick its default.
func (c *Client) SignMedia(ctx context.Context, filenames []string, expiry time.Duration) ([]SignedMedia, error) {
	payload, err := json.Marshal(signRequest{
		Filenames: filenames,
		ExpiryMs:  expiry.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/media/sign", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError("sign", resp)
	}
	var signed []SignedMedia
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return nil, fmt.Errorf("decode sign response: %w", err)
	}
	return signed, nil
}

// MediaSigner adapts the client to the cache's Signer contract.
func (c *Client) MediaSigner() media.Signer {
	return media.SignerFunc(func(ctx context.Context, filenames []string) ([]media.SignedURL, error) {
		signed, err := c.SignMedia(ctx, filenames, 0)
		if err != nil {
			return nil, err
		}
		out := make([]media.SignedURL, 0, len(signed))
		for _, s := range signed {
			out = append(out, media.SignedURL{
				Filename: s.Filename,
				URL:      s.URL,
				Expires:  time.UnixMilli(s.Expires),
			})
		}
		return out, nil
	})
}

func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		slog.Debug("api http error", "method", req.Method, "url", req.URL.String(), "duration", duration.String(), "err", err)
		return nil, err
	}
	slog.Debug("api http", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "duration", duration.String())
	return resp, nil
}

func responseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = resp.Status
	}
	return fmt.Errorf("%s failed (%d): %s", op, resp.StatusCode, message)
}
