package rtc

import "github.com/pion/webrtc/v4"

// Wire messages exchanged with the provider gateway over the signaling
// websocket. The gateway always drives SDP negotiation (it sends offers,
// the client answers).

type envelope struct {
	Type string `json:"type"`
}

type joinMessage struct {
	Type      string `json:"type"`
	AppID     string `json:"app_id"`
	ChannelID string `json:"channel_id"`
	Token     string `json:"token"`
	UID       uint32 `json:"uid"`
	Role      string `json:"role"`
}

type ackMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

type sdpMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type candidateMessage struct {
	Type      string                  `json:"type"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type subscribeMessage struct {
	Type  string `json:"type"`
	UID   uint32 `json:"uid"`
	Media string `json:"media"`
}

type presenceMessage struct {
	Type  string `json:"type"`
	UID   uint32 `json:"uid"`
	Media string `json:"media,omitempty"`
}
