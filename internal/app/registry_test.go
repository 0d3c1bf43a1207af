package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

type stubTransport struct {
	roleErr error
	joinErr error

	role       core.Role
	joinedApp  string
	joinedUID  uint32
	leaves     int
	calls      []string
	remotes    []domain.RemoteParticipant
	onPresence func(core.PresenceEvent)
}

func (s *stubTransport) SetRole(role core.Role) error {
	if s.roleErr != nil {
		return s.roleErr
	}
	s.role = role
	return nil
}

func (s *stubTransport) Join(ctx context.Context, appID, channelID, token string, uid uint32) error {
	if s.joinErr != nil {
		return s.joinErr
	}
	s.joinedApp = appID
	s.joinedUID = uid
	return nil
}

func (s *stubTransport) Publish(tracks ...core.LocalTrack) error   { return nil }
func (s *stubTransport) Unpublish(tracks ...core.LocalTrack) error { return nil }

func (s *stubTransport) Leave(ctx context.Context) error {
	s.leaves++
	return nil
}

func (s *stubTransport) Subscribe(uid uint32, kind core.MediaKind) error {
	s.calls = append(s.calls, "subscribe")
	return nil
}

func (s *stubTransport) RemoteParticipants() []domain.RemoteParticipant {
	s.calls = append(s.calls, "snapshot")
	return s.remotes
}

func (s *stubTransport) OnPresence(fn func(core.PresenceEvent)) {
	s.onPresence = fn
}

func TestRegistrySubscribesBeforeRecompute(t *testing.T) {
	transport := &stubTransport{}
	NewRegistry(transport)
	require.NotNil(t, transport.onPresence)

	transport.remotes = []domain.RemoteParticipant{{UID: 9}}
	transport.onPresence(core.PresenceEvent{
		Kind:  core.PresencePublished,
		UID:   9,
		Media: core.MediaVideo,
	})

	assert.Equal(t, []string{"subscribe", "snapshot"}, transport.calls,
		"media must be flowing before the recomputed set is visible")
}

func TestRegistryRecomputesFromSnapshot(t *testing.T) {
	transport := &stubTransport{}
	r := NewRegistry(transport)

	transport.remotes = []domain.RemoteParticipant{{UID: 9}, {UID: 11}}
	transport.onPresence(core.PresenceEvent{Kind: core.PresenceJoined, UID: 9})
	assert.Len(t, r.Participants(), 2)

	// A stale "left" after the snapshot already dropped the participant
	// converges to the snapshot, not to the event.
	transport.remotes = []domain.RemoteParticipant{{UID: 11}}
	transport.onPresence(core.PresenceEvent{Kind: core.PresenceLeft, UID: 11})

	got := r.Participants()
	require.Len(t, got, 1)
	assert.Equal(t, uint32(11), got[0].UID)
}

func TestRegistrySwapped(t *testing.T) {
	transport := &stubTransport{}
	r := NewRegistry(transport)

	_, ok := r.Swapped(42)
	assert.False(t, ok)

	transport.remotes = []domain.RemoteParticipant{{UID: 42}}
	r.Recompute()
	_, ok = r.Swapped(42)
	assert.False(t, ok, "the local publisher alone is not a swapped output")

	transport.remotes = []domain.RemoteParticipant{{UID: 42}, {UID: 7}}
	r.Recompute()
	got, ok := r.Swapped(42)
	require.True(t, ok)
	assert.Equal(t, uint32(7), got.UID)
}

func TestRegistrySwappedPicksFirstNonLocal(t *testing.T) {
	transport := &stubTransport{}
	r := NewRegistry(transport)

	transport.remotes = []domain.RemoteParticipant{{UID: 7}, {UID: 8}}
	r.Recompute()
	got, ok := r.Swapped(42)
	require.True(t, ok)
	assert.Equal(t, uint32(7), got.UID)
}

func TestObserverJoinUsesOffsetUID(t *testing.T) {
	transport := &stubTransport{}
	o := NewObserver(transport, 1000)

	creds := domain.Credentials{
		ChannelID: "ch-1",
		UserID:    "42",
		Token:     "tok",
		AppID:     "app-1",
	}
	require.NoError(t, o.Join(context.Background(), creds, ""))

	assert.Equal(t, core.RoleAudience, transport.role)
	assert.Equal(t, uint32(1042), transport.joinedUID)
	assert.Equal(t, "app-1", transport.joinedApp)
}

func TestObserverJoinFallbackAppID(t *testing.T) {
	transport := &stubTransport{}
	o := NewObserver(transport, 1000)

	creds := domain.Credentials{ChannelID: "ch-1", UserID: "42", Token: "tok"}
	require.NoError(t, o.Join(context.Background(), creds, "app-fallback"))
	assert.Equal(t, "app-fallback", transport.joinedApp)

	err := NewObserver(&stubTransport{}, 1000).Join(context.Background(), creds, "")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestObserverSwappedExcludesPublisher(t *testing.T) {
	transport := &stubTransport{}
	o := NewObserver(transport, 1000)

	_, ok := o.Swapped()
	assert.False(t, ok, "not joined yet")

	creds := domain.Credentials{ChannelID: "ch-1", UserID: "42", Token: "tok", AppID: "app-1"}
	require.NoError(t, o.Join(context.Background(), creds, ""))

	transport.remotes = []domain.RemoteParticipant{{UID: 42}, {UID: 7}}
	transport.onPresence(core.PresenceEvent{Kind: core.PresenceJoined, UID: 7})

	got, ok := o.Swapped()
	require.True(t, ok)
	assert.Equal(t, uint32(7), got.UID, "the publisher's own stream is never the output")
}

func TestObserverLeaveIdempotent(t *testing.T) {
	transport := &stubTransport{}
	o := NewObserver(transport, 1000)

	require.NoError(t, o.Leave(context.Background()))
	assert.Zero(t, transport.leaves)

	creds := domain.Credentials{ChannelID: "ch-1", UserID: "42", Token: "tok", AppID: "app-1"}
	require.NoError(t, o.Join(context.Background(), creds, ""))
	require.NoError(t, o.Leave(context.Background()))
	require.NoError(t, o.Leave(context.Background()))
	assert.Equal(t, 1, transport.leaves)
}
