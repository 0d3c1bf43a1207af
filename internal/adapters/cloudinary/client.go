// Package cloudinary is the target-face image store: signed uploads and
// deletes plus folder-scoped listing.
package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/config"
	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

const maxListResults = 30

type Client struct {
	http    *http.Client
	cfg     config.CloudinaryConfig
	baseURL string
}

func NewClient(cfg config.CloudinaryConfig) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		cfg:     cfg,
		baseURL: "https://api.cloudinary.com/v1_1",
	}
}

func (c *Client) configured() error {
	if c.cfg.CloudName == "" || c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return fmt.Errorf("%w: cloudinary credentials", core.ErrConfiguration)
	}
	return nil
}

// sign builds the request signature: the sorted params joined with '&',
// concatenated with the api secret, SHA-1 hex encoded.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + c.cfg.APISecret))
	return hex.EncodeToString(sum[:])
}

func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*domain.TargetImage, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	publicID := c.cfg.Folder + "/" + uuid.NewString()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := c.sign(map[string]string{
		"public_id": publicID,
		"timestamp": ts,
	})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, err
	}
	_ = mw.WriteField("api_key", c.cfg.APIKey)
	_ = mw.WriteField("timestamp", ts)
	_ = mw.WriteField("public_id", publicID)
	_ = mw.WriteField("signature", sig)
	if err := mw.Close(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", c.baseURL, c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		PublicID  string `json:"public_id"`
		SecureURL string `json:"secure_url"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		CreatedAt string `json:"created_at"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	log.Info().Str("module", "cloudinary").Str("public_id", resp.PublicID).Msg("image uploaded")
	return &domain.TargetImage{
		PublicID:  resp.PublicID,
		URL:       resp.SecureURL,
		Width:     resp.Width,
		Height:    resp.Height,
		CreatedAt: resp.CreatedAt,
	}, nil
}

func (c *Client) List(ctx context.Context) ([]domain.TargetImage, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]any{
		"expression":  fmt.Sprintf("folder:%s AND resource_type:image", c.cfg.Folder),
		"sort_by":     []map[string]string{{"created_at": "desc"}},
		"max_results": maxListResults,
	})
	endpoint := fmt.Sprintf("%s/%s/resources/search", c.baseURL, c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)

	var resp struct {
		Resources []struct {
			PublicID  string `json:"public_id"`
			SecureURL string `json:"secure_url"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			CreatedAt string `json:"created_at"`
		} `json:"resources"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.TargetImage, 0, len(resp.Resources))
	for _, res := range resp.Resources {
		out = append(out, domain.TargetImage{
			PublicID:  res.PublicID,
			URL:       res.SecureURL,
			Width:     res.Width,
			Height:    res.Height,
			CreatedAt: res.CreatedAt,
		})
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, publicID string) error {
	if err := c.configured(); err != nil {
		return err
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("timestamp", ts)
	form.Set("api_key", c.cfg.APIKey)
	form.Set("signature", c.sign(map[string]string{
		"public_id": publicID,
		"timestamp": ts,
	}))

	endpoint := fmt.Sprintf("%s/%s/image/destroy", c.baseURL, c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		Result string `json:"result"`
	}
	if err := c.do(req, &resp); err != nil {
		return err
	}
	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy %s: %s", publicID, resp.Result)
	}
	log.Info().Str("module", "cloudinary").Str("public_id", publicID).Msg("image deleted")
	return nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("cloudinary: read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return core.NewUpstreamError("cloudinary "+req.URL.Path, res.StatusCode, body, nil)
	}
	return json.Unmarshal(body, out)
}
