package core

import (
	"context"
	"io"

	"github.com/pion/webrtc/v4"

	"github.com/keiyara/faceswap/internal/domain"
)

// Role is the transport-channel capability set before joining.
type Role string

const (
	RoleHost     Role = "host"
	RoleAudience Role = "audience"
)

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

type PresenceKind string

const (
	PresencePublished   PresenceKind = "participant-published"
	PresenceUnpublished PresenceKind = "participant-unpublished"
	PresenceJoined      PresenceKind = "participant-joined"
	PresenceLeft        PresenceKind = "participant-left"
)

// PresenceEvent is a transport notification about a remote participant.
// Events may arrive out of order relative to each other.
type PresenceEvent struct {
	Kind  PresenceKind
	UID   uint32
	Media MediaKind
}

// SwapService is the face-swap processing service boundary. Implementations
// translate the upstream's embedded success sentinels into typed errors
// before anything reaches the orchestrator.
type SwapService interface {
	// DetectFace locates a face in a publicly fetchable image and returns
	// its landmark descriptor.
	DetectFace(ctx context.Context, imageURL string) (domain.Landmarks, error)
	// CreateSession starts a face-swap run. The caller must have resolved
	// landmarks already; this call never detects faces itself.
	CreateSession(ctx context.Context, imageURL string, marks domain.Landmarks) (*domain.Session, error)
	// UpdateSession swaps the active face of an existing run.
	UpdateSession(ctx context.Context, id domain.SessionID, imageURL string, marks domain.Landmarks) error
	// CloseSession ends the run. Closing an already-closed or unknown
	// session is a no-op; teardown never blocks on this call's success.
	CloseSession(ctx context.Context, id domain.SessionID) error
}

// LocalTrack is a locally produced media track handed to the transport.
type LocalTrack = webrtc.TrackLocal

// TransportClient is one connection to the real-time transport provider.
// All operations may fail independently.
type TransportClient interface {
	// SetRole must be called before Join. Audience clients never publish.
	SetRole(role Role) error
	// Join enters the channel with the exact credentials the processing
	// service issued. uid is the numeric id from those credentials.
	Join(ctx context.Context, appID, channelID, token string, uid uint32) error
	Publish(tracks ...LocalTrack) error
	Unpublish(tracks ...LocalTrack) error
	Leave(ctx context.Context) error

	// Subscribe starts receiving a remote participant's published media.
	Subscribe(uid uint32, kind MediaKind) error
	// RemoteParticipants returns the provider-authoritative participant
	// snapshot at call time.
	RemoteParticipants() []domain.RemoteParticipant
	// OnPresence registers the single presence-event consumer.
	OnPresence(fn func(PresenceEvent))
}

// MediaSource acquires the user's own capture tracks.
type MediaSource interface {
	Acquire(ctx context.Context) (*LocalTracks, error)
}

// ImageStore is the target-face image collaborator. Consumed only by the
// route layer to obtain image URLs fed into the core.
type ImageStore interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*domain.TargetImage, error)
	List(ctx context.Context) ([]domain.TargetImage, error)
	Delete(ctx context.Context, publicID string) error
}
