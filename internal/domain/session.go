// Package domain contains entity without logic, just meta-data
package domain

import "strconv"

type SessionID string

// SwapStatus mirrors the processing service's faceswap_status field.
type SwapStatus int

const (
	StatusQueued    SwapStatus = 1
	StatusReady     SwapStatus = 2
	StatusSucceeded SwapStatus = 3
	StatusFailed    SwapStatus = 4
)

func (s SwapStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusReady:
		return "ready"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Credentials are issued by the processing service together with the session.
// They must be used verbatim for the transport join; the client never picks
// its own channel or user id.
type Credentials struct {
	ChannelID       string `json:"channelId"`
	UserID          string `json:"userId"`
	Token           string `json:"token"`
	AppID           string `json:"appId"`
	AlgorithmUserID string `json:"algorithmUserId"`
}

// UID parses the numeric user id the service issued. An unparseable id falls
// back to 0, which asks the transport provider to assign one.
func (c Credentials) UID() uint32 {
	n, err := strconv.ParseUint(c.UserID, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// Session is one face-swap run owned by the processing service.
type Session struct {
	ID          SessionID
	Status      SwapStatus
	Credentials Credentials
	FaceURL     string
}

// Joinable reports whether the session accepts a transport join. The service
// provisions the channel at create time, so queued is already joinable.
func (s *Session) Joinable() bool {
	return s.Status == StatusQueued || s.Status == StatusReady
}
