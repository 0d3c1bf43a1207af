package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

// Registry maintains the current set of remote channel participants. Every
// presence event triggers a full recomputation from the transport's own
// authoritative snapshot; the set is never patched incrementally, so event
// reordering (a "left" racing a "published") cannot make it drift.
type Registry struct {
	transport core.TransportClient

	mu           sync.RWMutex
	participants []domain.RemoteParticipant
}

func NewRegistry(transport core.TransportClient) *Registry {
	r := &Registry{transport: transport}
	transport.OnPresence(r.handlePresence)
	return r
}

func (r *Registry) handlePresence(ev core.PresenceEvent) {
	if ev.Kind == core.PresencePublished {
		// Subscribe first so the media is flowing by the time consumers
		// see the recomputed set.
		if err := r.transport.Subscribe(ev.UID, ev.Media); err != nil {
			log.Error().Err(err).Str("module", "app.registry").
				Uint32("uid", ev.UID).Str("media", string(ev.Media)).
				Msg("subscribe failed")
		}
	}
	r.Recompute()
	log.Info().Str("module", "app.registry").
		Str("event", string(ev.Kind)).Uint32("uid", ev.UID).
		Msg("participants recomputed")
}

// Recompute replaces the cached set with the transport's current snapshot.
func (r *Registry) Recompute() {
	snap := r.transport.RemoteParticipants()
	r.mu.Lock()
	r.participants = snap
	r.mu.Unlock()
}

// Participants returns the latest computed set.
func (r *Registry) Participants() []domain.RemoteParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RemoteParticipant, len(r.participants))
	copy(out, r.participants)
	return out
}

// Swapped picks the processed output stream: the first remote participant
// whose uid differs from localUID. The channel is assumed to hold at most
// one non-local participant (the processing service); more than one gets a
// warning, not an error.
func (r *Registry) Swapped(localUID uint32) (domain.RemoteParticipant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.RemoteParticipant
	others := 0
	for i := range r.participants {
		if r.participants[i].UID == localUID {
			continue
		}
		others++
		if found == nil {
			found = &r.participants[i]
		}
	}
	if others > 1 {
		log.Warn().Str("module", "app.registry").Int("count", others).
			Msg("more than one non-local participant in channel")
	}
	if found == nil {
		return domain.RemoteParticipant{}, false
	}
	return *found, true
}
