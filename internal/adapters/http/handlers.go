package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/app"
	"github.com/keiyara/faceswap/internal/app/orch"
	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

// defaultSourceImage is used when a start request names no target face.
// It must stay fetchable by the processing service; some CDNs block its
// fetcher, which surfaces as a detection failure.
const defaultSourceImage = "https://d21ksh0k4smeql.cloudfront.net/crop_1695201165222-7514-0-1695201165485-8149.png"

const maxUploadBytes = 10 << 20

type Handler struct {
	Orch   *orch.Orchestrator
	Images core.ImageStore
	Links  *LinkSigner

	// Observer is the passive-viewer surface; it holds its own transport
	// connection, independent of the publishing session's.
	Observer      *app.Observer
	FallbackAppID string
}

func (h *Handler) StartSwap(c *gin.Context) {
	var req struct {
		SourceImageURL string `json:"sourceImageUrl"`
		FaceLandmarks  string `json:"faceLandmarks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	imageURL := req.SourceImageURL
	if imageURL == "" {
		imageURL = defaultSourceImage
	}

	sess, err := h.Orch.Start(c.Request.Context(), imageURL, domain.Landmarks(req.FaceLandmarks))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": string(sess.ID),
		"status":    int(sess.Status),
		"agora":     sess.Credentials,
	})
}

func (h *Handler) UpdateFace(c *gin.Context) {
	var req struct {
		SessionID      string `json:"sessionId"`
		SourceImageURL string `json:"sourceImageUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SessionID == "" {
		writeError(c, fmt.Errorf("%w: sessionId", core.ErrValidation))
		return
	}
	if req.SourceImageURL == "" {
		writeError(c, fmt.Errorf("%w: sourceImageUrl", core.ErrValidation))
		return
	}
	if !h.ownsSession(req.SessionID) {
		writeError(c, core.ErrInvalidSession)
		return
	}

	if err := h.Orch.UpdateFace(c.Request.Context(), req.SourceImageURL); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Face updated successfully"})
}

func (h *Handler) CloseSession(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SessionID == "" {
		writeError(c, fmt.Errorf("%w: sessionId", core.ErrValidation))
		return
	}
	if sess, ok := h.Orch.Session(); ok && string(sess.ID) != req.SessionID {
		writeError(c, core.ErrInvalidSession)
		return
	}

	if err := h.Orch.Stop(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session closed successfully"})
}

func (h *Handler) SessionStatus(c *gin.Context) {
	resp := gin.H{"state": h.Orch.State().String()}
	if sess, ok := h.Orch.Session(); ok {
		resp["sessionId"] = string(sess.ID)
		resp["status"] = int(sess.Status)
	}
	_, live := h.Orch.Swapped()
	resp["swappedLive"] = live
	c.JSON(http.StatusOK, resp)
}

// ObserverLink hands out a signed, expiring token carrying the channel
// credentials for the passive viewer page, instead of raw query params.
func (h *Handler) ObserverLink(c *gin.Context) {
	sess, ok := h.Orch.Session()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no active session"})
		return
	}

	token, expiresAt, err := h.Links.Sign(sess.Credentials)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"token":     token,
		"expiresAt": expiresAt.Unix(),
		"channelId": sess.Credentials.ChannelID,
	})
}

// ObserverJoin redeems a signed observer link and joins the transport
// channel with the audience role.
func (h *Handler) ObserverJoin(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeError(c, fmt.Errorf("%w: token", core.ErrValidation))
		return
	}

	creds, observerUID, err := h.Links.Verify(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired link"})
		return
	}

	if err := h.Observer.Join(c.Request.Context(), creds, h.FallbackAppID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"channelId": creds.ChannelID,
		"uid":       observerUID,
	})
}

func (h *Handler) ObserverStatus(c *gin.Context) {
	resp := gin.H{}
	p, ok := h.Observer.Swapped()
	resp["swappedLive"] = ok
	if ok {
		resp["uid"] = p.UID
		resp["hasVideo"] = p.HasVideo()
		resp["hasAudio"] = p.HasAudio()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ObserverLeave(c *gin.Context) {
	if err := h.Observer.Leave(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) UploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image must be 10MB or smaller"})
		return
	}
	if ct := fileHeader.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only image files are accepted"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	img, err := h.Images.Upload(c.Request.Context(), fileHeader.Filename, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"publicId": img.PublicID,
		"url":      img.URL,
		"width":    img.Width,
		"height":   img.Height,
	})
}

func (h *Handler) ListImages(c *gin.Context) {
	images, err := h.Images.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "images": images})
}

func (h *Handler) DeleteImage(c *gin.Context) {
	var req struct {
		PublicID string `json:"publicId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PublicID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no publicId provided"})
		return
	}

	if err := h.Images.Delete(c.Request.Context(), req.PublicID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ownsSession(id string) bool {
	sess, ok := h.Orch.Session()
	return ok && string(sess.ID) == id
}

// writeError maps typed errors onto the route surface: upstream rejections
// keep their raw detail payload and mirror the upstream HTTP status when
// one exists; unknown-shaped errors default to 500.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidSession),
		errors.Is(err, core.ErrNoFaceDetected),
		errors.Is(err, core.ErrDetectionFailed),
		errors.Is(err, core.ErrPermissionDenied):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, core.ErrConfiguration):
		status = http.StatusInternalServerError
	}

	body := gin.H{"error": err.Error()}

	var ue *core.UpstreamError
	if errors.As(err, &ue) {
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		if ue.Code >= 400 && ue.Code < 600 {
			status = ue.Code
		}
		if len(ue.Detail) > 0 {
			body["details"] = json.RawMessage(ue.Detail)
		}
	}
	var te *core.TransportError
	if errors.As(err, &te) {
		status = http.StatusBadGateway
	}

	log.Error().Err(err).Str("module", "adapters.http").Int("status", status).Msg("request failed")
	c.JSON(status, body)
}
