package domain

import "github.com/pion/webrtc/v4"

// RemoteParticipant is a transport-channel peer. Tracks are independently
// published and may be nil.
type RemoteParticipant struct {
	UID        uint32
	VideoTrack *webrtc.TrackRemote
	AudioTrack *webrtc.TrackRemote
}

func (p RemoteParticipant) HasVideo() bool { return p.VideoTrack != nil }
func (p RemoteParticipant) HasAudio() bool { return p.AudioTrack != nil }
