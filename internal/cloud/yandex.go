package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	yandexBaseURL  = "https://cloud-api.yandex.net/v1/disk"
	yandexPageSize = 100
)

// YandexDisk is a Connector over the Yandex Disk REST API.
type YandexDisk struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewYandexDisk creates a connector authenticated with the given OAuth token.
func NewYandexDisk(token string) *YandexDisk {
	return &YandexDisk{
		baseURL: yandexBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// resourceEntry mirrors one item of the /resources response.
type resourceEntry struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Type     string `json:"type"` // "dir" or "file"
	Size     int64  `json:"size"`
	MD5      string `json:"md5"`
	Modified string `json:"modified"`
}

type resourceResponse struct {
	resourceEntry
	Embedded *struct {
		Items  []resourceEntry `json:"items"`
		Total  int             `json:"total"`
		Limit  int             `json:"limit"`
		Offset int             `json:"offset"`
	} `json:"_embedded"`
}

// normalizePath strips the "disk:" prefix Yandex puts on resource paths.
func normalizePath(p string) string {
	return strings.TrimPrefix(p, "disk:")
}

func (e resourceEntry) toRecord() FileRecord {
	rec := FileRecord{
		Path:  normalizePath(e.Path),
		Name:  e.Name,
		Size:  e.Size,
		Hash:  e.MD5,
		IsDir: e.Type == "dir",
	}
	if t, err := time.Parse(time.RFC3339, e.Modified); err == nil {
		rec.Modified = t
	}
	return rec
}

// List returns the direct children of path, following pagination until the
// directory is exhausted.
func (c *YandexDisk) List(ctx context.Context, path string) ([]FileRecord, error) {
	var records []FileRecord
	offset := 0
	for {
		res, err := c.getResource(ctx, path, yandexPageSize, offset)
		if err != nil {
			return nil, err
		}
		if res.Embedded == nil {
			break
		}
		for _, item := range res.Embedded.Items {
			records = append(records, item.toRecord())
		}
		offset += len(res.Embedded.Items)
		if offset >= res.Embedded.Total || len(res.Embedded.Items) == 0 {
			break
		}
	}
	return records, nil
}

// Metadata returns the record for a single file or directory.
func (c *YandexDisk) Metadata(ctx context.Context, path string) (FileRecord, error) {
	res, err := c.getResource(ctx, path, 1, 0)
	if err != nil {
		return FileRecord{}, err
	}
	return res.toRecord(), nil
}

func (c *YandexDisk) getResource(ctx context.Context, path string, limit, offset int) (*resourceResponse, error) {
	q := url.Values{}
	q.Set("path", path)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/resources?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating resources request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("listing %s: status %d: %s", path, resp.StatusCode, string(body))
	}

	var res resourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding resources response: %w", err)
	}
	return &res, nil
}

// Download fetches a remote file through the two-step download flow: resolve
// the temporary href, then stream it to localPath. Transient fetch failures
// are retried with fibonacci backoff.
func (c *YandexDisk) Download(ctx context.Context, remotePath, localPath string) error {
	q := url.Values{}
	q.Set("path", remotePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/resources/download?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resolving download url for %s: %w", remotePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resolving download url for %s: status %d", remotePath, resp.StatusCode)
	}

	var link struct {
		Href string `json:"href"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return fmt.Errorf("decoding download link: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fetchToFile(ctx, c.httpClient, link.Href, localPath); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// fetchToFile streams url into localPath, creating parent directories.
func fetchToFile(ctx context.Context, client *http.Client, rawURL, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating fetch request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching file: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating local file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("writing local file: %w", err)
	}
	return nil
}
