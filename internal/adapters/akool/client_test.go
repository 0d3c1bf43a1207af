package akool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keiyara/faceswap/internal/config"
	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

func testClient(srv *httptest.Server) *Client {
	return NewClient(config.AkoolConfig{
		APIKey:    "test-key",
		DetectURL: srv.URL + "/detect",
		CreateURL: srv.URL + "/create",
		UpdateURL: srv.URL + "/update",
		CloseURL:  srv.URL + "/close",
		Timeout:   5 * time.Second,
	})
}

func TestDetectFace(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		var req struct {
			SingleFace bool   `json:"single_face"`
			ImageURL   string `json:"image_url"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.SingleFace)
		assert.Equal(t, "https://img.example/face.png", req.ImageURL)
		json.NewEncoder(w).Encode(map[string]any{
			"error_code":    0,
			"landmarks_str": "262,175:363,175:313,215:312,279",
		})
	}))
	defer srv.Close()

	marks, err := testClient(srv).DetectFace(context.Background(), "https://img.example/face.png")
	require.NoError(t, err)
	assert.Equal(t, domain.Landmarks("262,175:363,175:313,215:312,279"), marks)
	assert.Equal(t, "test-key", gotKey)
}

func TestDetectFaceNoFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error_code": 0, "landmarks_str": ""})
	}))
	defer srv.Close()

	_, err := testClient(srv).DetectFace(context.Background(), "https://img.example/empty.png")
	assert.ErrorIs(t, err, core.ErrNoFaceDetected)
}

func TestDetectFaceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error_code": 1103, "error_msg": "fetch failed"})
	}))
	defer srv.Close()

	_, err := testClient(srv).DetectFace(context.Background(), "https://blocked.cdn/face.png")
	assert.ErrorIs(t, err, core.ErrDetectionFailed)

	var ue *core.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 1103, ue.Code)
	assert.Contains(t, string(ue.Detail), "fetch failed")
}

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SourceImage []struct {
				Path string `json:"path"`
				Opts string `json:"opts"`
			} `json:"sourceImage"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.SourceImage, 1)
		assert.Equal(t, "1,2:3,4", req.SourceImage[0].Opts)

		json.NewEncoder(w).Encode(map[string]any{
			"code": 1000,
			"data": map[string]any{
				"_id":               "s1",
				"faceswap_status":   2,
				"channel_id":        "c1",
				"front_user_id":     "42",
				"front_rtc_token":   "tok",
				"app_id":            "app",
				"algorithm_user_id": "99",
			},
		})
	}))
	defer srv.Close()

	sess, err := testClient(srv).CreateSession(context.Background(), "https://img.example/face.png", "1,2:3,4")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionID("s1"), sess.ID)
	assert.Equal(t, domain.StatusReady, sess.Status)
	assert.Equal(t, "c1", sess.Credentials.ChannelID)
	assert.Equal(t, uint32(42), sess.Credentials.UID())
	assert.Equal(t, "99", sess.Credentials.AlgorithmUserID)
	assert.True(t, sess.Joinable())
}

func TestCreateSessionRejectedOn200(t *testing.T) {
	// Non-success sentinel inside an HTTP 200 is still a domain failure and
	// the raw payload must survive into the error detail.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 1101, "msg": "insufficient credit"})
	}))
	defer srv.Close()

	_, err := testClient(srv).CreateSession(context.Background(), "https://img.example/face.png", "1,2")
	var ue *core.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 1101, ue.Code)
	assert.Contains(t, string(ue.Detail), "insufficient credit")
}

func TestUpdateSessionInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 1201, "msg": "session not found"})
	}))
	defer srv.Close()

	err := testClient(srv).UpdateSession(context.Background(), "gone", "https://img.example/new.png", "1,2")
	assert.ErrorIs(t, err, core.ErrInvalidSession)
}

func TestCloseSessionIdempotent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Already closed upstream.
		json.NewEncoder(w).Encode(map[string]any{"code": 1201})
	}))
	defer srv.Close()

	c := testClient(srv)
	assert.NoError(t, c.CloseSession(context.Background(), "s1"))
	assert.NoError(t, c.CloseSession(context.Background(), "s1"))
	assert.Equal(t, 2, calls)
}

func TestMissingAPIKey(t *testing.T) {
	c := NewClient(config.AkoolConfig{DetectURL: "http://unused"})
	_, err := c.DetectFace(context.Background(), "https://img.example/face.png")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
