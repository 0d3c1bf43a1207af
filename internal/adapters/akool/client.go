// Package akool talks to the face-swap processing service. The upstream
// signals success through sentinels embedded in the payload rather than
// transport status, so every response is translated into a typed result
// before it reaches the orchestrator.
package akool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/config"
	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

// successCode is the session-call success sentinel; anything else is a
// domain failure even on an HTTP 200.
const successCode = 1000

type Client struct {
	http *http.Client
	cfg  config.AkoolConfig
}

func NewClient(cfg config.AkoolConfig) *Client {
	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

type sourceImage struct {
	Path string `json:"path"`
	Opts string `json:"opts,omitempty"`
}

func (c *Client) DetectFace(ctx context.Context, imageURL string) (domain.Landmarks, error) {
	body, err := c.post(ctx, c.cfg.DetectURL, map[string]any{
		"single_face": true,
		"image_url":   imageURL,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		ErrorCode    int    `json:"error_code"`
		LandmarksStr string `json:"landmarks_str"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("akool detect: decode response: %w", err)
	}
	if resp.ErrorCode != 0 {
		return "", core.NewUpstreamError("akool detect", resp.ErrorCode, body, core.ErrDetectionFailed)
	}
	if resp.LandmarksStr == "" {
		return "", core.NewUpstreamError("akool detect", resp.ErrorCode, body, core.ErrNoFaceDetected)
	}
	return domain.Landmarks(resp.LandmarksStr), nil
}

func (c *Client) CreateSession(ctx context.Context, imageURL string, marks domain.Landmarks) (*domain.Session, error) {
	body, err := c.post(ctx, c.cfg.CreateURL, map[string]any{
		"sourceImage": []sourceImage{{Path: imageURL, Opts: string(marks)}},
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code int `json:"code"`
		Data struct {
			ID              string `json:"_id"`
			FaceswapStatus  int    `json:"faceswap_status"`
			ChannelID       string `json:"channel_id"`
			FrontUserID     string `json:"front_user_id"`
			FrontRTCToken   string `json:"front_rtc_token"`
			AppID           string `json:"app_id"`
			AlgorithmUserID string `json:"algorithm_user_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("akool create: decode response: %w", err)
	}
	if resp.Code != successCode {
		return nil, core.NewUpstreamError("akool create", resp.Code, body, nil)
	}

	log.Info().Str("module", "akool").
		Str("session_id", resp.Data.ID).
		Int("status", resp.Data.FaceswapStatus).
		Str("channel", resp.Data.ChannelID).
		Msg("session created")

	return &domain.Session{
		ID:      domain.SessionID(resp.Data.ID),
		Status:  domain.SwapStatus(resp.Data.FaceswapStatus),
		FaceURL: imageURL,
		Credentials: domain.Credentials{
			ChannelID:       resp.Data.ChannelID,
			UserID:          resp.Data.FrontUserID,
			Token:           resp.Data.FrontRTCToken,
			AppID:           resp.Data.AppID,
			AlgorithmUserID: resp.Data.AlgorithmUserID,
		},
	}, nil
}

func (c *Client) UpdateSession(ctx context.Context, id domain.SessionID, imageURL string, marks domain.Landmarks) error {
	body, err := c.post(ctx, c.cfg.UpdateURL, map[string]any{
		"_id":         string(id),
		"sourceImage": []sourceImage{{Path: imageURL, Opts: string(marks)}},
	})
	if err != nil {
		return err
	}

	var resp struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("akool update: decode response: %w", err)
	}
	if resp.Code != successCode {
		return core.NewUpstreamError("akool update", resp.Code, body, core.ErrInvalidSession)
	}
	log.Info().Str("module", "akool").Str("session_id", string(id)).Msg("face updated")
	return nil
}

// CloseSession is idempotent from the caller's perspective: an upstream
// rejection (already closed, unknown id) is logged and swallowed so that
// teardown never blocks on it.
func (c *Client) CloseSession(ctx context.Context, id domain.SessionID) error {
	body, err := c.post(ctx, c.cfg.CloseURL, map[string]any{"_id": string(id)})
	if err != nil {
		return err
	}

	var resp struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("akool close: decode response: %w", err)
	}
	if resp.Code != successCode {
		log.Warn().Str("module", "akool").
			Str("session_id", string(id)).
			Int("code", resp.Code).
			RawJSON("detail", body).
			Msg("close rejected upstream, treating as no-op")
		return nil
	}
	log.Info().Str("module", "akool").Str("session_id", string(id)).Msg("session closed")
	return nil
}

func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: AKOOL_API_KEY", core.ErrConfiguration)
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("akool: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("akool: %s: %w", url, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("akool: read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, core.NewUpstreamError("akool "+url, res.StatusCode, body, nil)
	}
	return body, nil
}
