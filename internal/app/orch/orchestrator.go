// Package orch drives the face-swap session lifecycle: it owns the two
// independently-lived external resources (the processing session and the
// transport channel) and guarantees a compensating teardown for both on
// every exit path.
package orch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/app"
	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateCapturingMedia
	StateCreatingSession
	StateJoining
	StatePublishing
	StateLive
	StateUpdatingFace
	StateStopping
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturingMedia:
		return "capturing_media"
	case StateCreatingSession:
		return "creating_session"
	case StateJoining:
		return "joining"
	case StatePublishing:
		return "publishing"
	case StateLive:
		return "live"
	case StateUpdatingFace:
		return "updating_face"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Orchestrator struct {
	Swap      core.SwapService
	Transport core.TransportClient
	Media     core.MediaSource
	Registry  *app.Registry

	// FallbackAppID covers sessions whose credentials carry an empty
	// transport app id.
	FallbackAppID string

	// op serializes whole lifecycle operations: a second start while one
	// is in flight is rejected, a stop waits for the in-flight call to
	// settle and then compensates.
	op sync.Mutex

	mu        sync.RWMutex
	state     State
	session   *domain.Session
	tracks    *core.LocalTracks
	joined    bool
	published bool
}

func New(swap core.SwapService, transport core.TransportClient, media core.MediaSource, registry *app.Registry, fallbackAppID string) *Orchestrator {
	return &Orchestrator{
		Swap:          swap,
		Transport:     transport,
		Media:         media,
		Registry:      registry,
		FallbackAppID: fallbackAppID,
	}
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Session returns a copy of the current session, if any.
func (o *Orchestrator) Session() (domain.Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.session == nil {
		return domain.Session{}, false
	}
	return *o.session, true
}

// Swapped reports the processed output participant once it is live on the
// channel.
func (o *Orchestrator) Swapped() (domain.RemoteParticipant, bool) {
	o.mu.RLock()
	sess := o.session
	state := o.state
	o.mu.RUnlock()
	if sess == nil || (state != StateLive && state != StateUpdatingFace) || o.Registry == nil {
		return domain.RemoteParticipant{}, false
	}
	return o.Registry.Swapped(sess.Credentials.UID())
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	log.Info().Str("module", "orch").Str("state", s.String()).Msg("state changed")
}

// teardown releases both external resources and the local tracks. Every
// step runs regardless of the others' outcomes; failures are logged, never
// propagated, because there is nothing left to surface them to.
func (o *Orchestrator) teardown(ctx context.Context) {
	o.mu.Lock()
	tracks := o.tracks
	sess := o.session
	joined := o.joined
	published := o.published
	o.mu.Unlock()

	if published && tracks != nil {
		if err := o.Transport.Unpublish(tracks.Audio, tracks.Video); err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("unpublish during teardown")
		}
	}
	if joined {
		if err := o.Transport.Leave(ctx); err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("leave during teardown")
		}
	}
	if sess != nil {
		if err := o.Swap.CloseSession(ctx, sess.ID); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("session_id", string(sess.ID)).Msg("close during teardown")
		}
	}
	tracks.Close()

	// Cleared only now: the session id is authoritative for "do we owe a
	// close call" until teardown has run.
	o.mu.Lock()
	o.tracks = nil
	o.session = nil
	o.joined = false
	o.published = false
	o.mu.Unlock()
}

func (o *Orchestrator) releaseTracks() {
	o.mu.Lock()
	tracks := o.tracks
	o.tracks = nil
	o.mu.Unlock()
	tracks.Close()
}
