package core

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrack(t *testing.T, mime, id string) LocalTrack {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mime}, id, "test")
	require.NoError(t, err)
	return track
}

func TestLocalTracksComplete(t *testing.T) {
	audio := sampleTrack(t, webrtc.MimeTypeOpus, "audio")
	video := sampleTrack(t, webrtc.MimeTypeH264, "video")

	assert.True(t, NewLocalTracks(audio, video, nil).Complete())
	assert.False(t, NewLocalTracks(audio, nil, nil).Complete())
	assert.False(t, NewLocalTracks(nil, video, nil).Complete())

	var none *LocalTracks
	assert.False(t, none.Complete())
}

func TestLocalTracksCloseOnce(t *testing.T) {
	released := 0
	tracks := NewLocalTracks(
		sampleTrack(t, webrtc.MimeTypeOpus, "audio"),
		sampleTrack(t, webrtc.MimeTypeH264, "video"),
		func() { released++ },
	)

	tracks.Close()
	tracks.Close()
	assert.Equal(t, 1, released)

	var none *LocalTracks
	none.Close()
}
