// Package media acquires the user's capture tracks. Video is an H264
// elementary stream and audio an Ogg Opus stream, read from the configured
// capture pipeline (device fifo or file) and paced onto local tracks.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/h264reader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/config"
	"github.com/keiyara/faceswap/internal/core"
)

// oggPageDuration matches the fixed page interval the capture pipeline
// encodes with.
const oggPageDuration = 20 * time.Millisecond

type Source struct {
	cfg config.MediaConfig
}

func NewSource(cfg config.MediaConfig) *Source {
	return &Source{cfg: cfg}
}

// Acquire opens both capture sources and starts feeding their tracks.
// Either source being unavailable means the user's devices cannot be
// captured; the session start must not proceed with a partial set.
func (s *Source) Acquire(ctx context.Context) (*core.LocalTracks, error) {
	videoFile, err := os.Open(s.cfg.VideoSource)
	if err != nil {
		return nil, fmt.Errorf("%w: video source %q: %v", core.ErrPermissionDenied, s.cfg.VideoSource, err)
	}
	audioFile, err := os.Open(s.cfg.AudioSource)
	if err != nil {
		_ = videoFile.Close()
		return nil, fmt.Errorf("%w: audio source %q: %v", core.ErrPermissionDenied, s.cfg.AudioSource, err)
	}

	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "video", "camera")
	if err != nil {
		_ = videoFile.Close()
		_ = audioFile.Close()
		return nil, err
	}
	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "mic")
	if err != nil {
		_ = videoFile.Close()
		_ = audioFile.Close()
		return nil, err
	}

	// Feeding outlives the Acquire call; it stops on release.
	feedCtx, cancel := context.WithCancel(context.Background())
	go s.feedVideo(feedCtx, videoFile, videoTrack)
	go s.feedAudio(feedCtx, audioFile, audioTrack)

	release := func() {
		cancel()
		_ = videoFile.Close()
		_ = audioFile.Close()
		log.Info().Str("module", "media").Msg("capture released")
	}
	log.Info().Str("module", "media").
		Int("width", s.cfg.Width).Int("height", s.cfg.Height).Int("frame_rate", s.cfg.FrameRate).
		Msg("capture acquired")
	return core.NewLocalTracks(audioTrack, videoTrack, release), nil
}

func (s *Source) feedVideo(ctx context.Context, f *os.File, track *webrtc.TrackLocalStaticSample) {
	frameRate := s.cfg.FrameRate
	if frameRate <= 0 {
		frameRate = 20
	}
	frameDuration := time.Second / time.Duration(frameRate)

	h264, err := h264reader.NewReader(f)
	if err != nil {
		log.Error().Err(err).Str("module", "media").Msg("h264 reader")
		return
	}

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		nal, err := h264.NextNAL()
		if err == io.EOF {
			// File sources loop; a live capture fifo never reaches EOF.
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return
			}
			if h264, err = h264reader.NewReader(f); err != nil {
				return
			}
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("module", "media").Msg("read video frame")
			return
		}
		if err := track.WriteSample(media.Sample{Data: nal.Data, Duration: frameDuration}); err != nil {
			log.Error().Err(err).Str("module", "media").Msg("write video sample")
			return
		}
	}
}

func (s *Source) feedAudio(ctx context.Context, f *os.File, track *webrtc.TrackLocalStaticSample) {
	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		log.Error().Err(err).Str("module", "media").Msg("ogg reader")
		return
	}

	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pageData, _, err := ogg.ParseNextPage()
		if err == io.EOF {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return
			}
			if ogg, _, err = oggreader.NewWith(f); err != nil {
				return
			}
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("module", "media").Msg("read audio page")
			return
		}
		if err := track.WriteSample(media.Sample{Data: pageData, Duration: oggPageDuration}); err != nil {
			log.Error().Err(err).Str("module", "media").Msg("write audio sample")
			return
		}
	}
}
