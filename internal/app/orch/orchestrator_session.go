package orch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

// Start runs the full start sequence: capture media, resolve landmarks if
// the caller supplied none, create the processing session, then join and
// publish with the credentials the service issued. Exactly one create call
// happens per accepted start; a second start while any session exists or an
// operation is in flight is rejected with ErrBusy.
func (o *Orchestrator) Start(ctx context.Context, imageURL string, marks domain.Landmarks) (*domain.Session, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("%w: sourceImageUrl", core.ErrValidation)
	}
	if !o.op.TryLock() {
		return nil, core.ErrBusy
	}
	defer o.op.Unlock()

	o.mu.Lock()
	if o.state != StateIdle && o.state != StateFailed {
		o.mu.Unlock()
		return nil, core.ErrBusy
	}
	o.state = StateCapturingMedia
	o.mu.Unlock()
	log.Info().Str("module", "orch").Str("image", imageURL).Msg("starting swap session")

	tracks, err := o.Media.Acquire(ctx)
	if err != nil {
		o.setState(StateIdle)
		return nil, err
	}
	if !tracks.Complete() {
		tracks.Close()
		o.setState(StateIdle)
		return nil, fmt.Errorf("%w: capture returned a partial track set", core.ErrPermissionDenied)
	}
	o.mu.Lock()
	o.tracks = tracks
	o.mu.Unlock()

	if marks.Empty() {
		marks, err = o.Swap.DetectFace(ctx, imageURL)
		if err != nil {
			// No session exists yet; no close is owed.
			o.releaseTracks()
			o.setState(StateIdle)
			return nil, err
		}
	}

	o.setState(StateCreatingSession)
	sess, err := o.Swap.CreateSession(ctx, imageURL, marks)
	if err != nil {
		o.releaseTracks()
		o.setState(StateIdle)
		return nil, err
	}
	o.mu.Lock()
	o.session = sess
	o.mu.Unlock()

	if !sess.Joinable() {
		o.failStart(ctx)
		return nil, fmt.Errorf("session %s not joinable, status %s", sess.ID, sess.Status)
	}

	o.setState(StateJoining)
	creds := sess.Credentials
	appID := creds.AppID
	if appID == "" {
		appID = o.FallbackAppID
	}
	if appID == "" {
		// Joining with an empty app id would fail silently downstream.
		o.failStart(ctx)
		return nil, fmt.Errorf("%w: transport app id", core.ErrConfiguration)
	}
	// Callers see the app id that was actually joined with.
	o.mu.Lock()
	o.session.Credentials.AppID = appID
	o.mu.Unlock()
	creds.AppID = appID
	if err := o.Transport.SetRole(core.RoleHost); err != nil {
		o.failStart(ctx)
		return nil, err
	}
	if err := o.Transport.Join(ctx, appID, creds.ChannelID, creds.Token, creds.UID()); err != nil {
		o.failStart(ctx)
		return nil, err
	}
	o.mu.Lock()
	o.joined = true
	o.mu.Unlock()

	o.setState(StatePublishing)
	if err := o.Transport.Publish(tracks.Audio, tracks.Video); err != nil {
		o.failStart(ctx)
		return nil, err
	}
	o.mu.Lock()
	o.published = true
	o.mu.Unlock()

	o.setState(StateLive)
	out := *sess
	return &out, nil
}

// failStart compensates a partially started session. An orphaned remote
// session is worse than a failed local join, so close is attempted whenever
// a session id was obtained, whatever step failed.
func (o *Orchestrator) failStart(ctx context.Context) {
	o.teardown(ctx)
	o.setState(StateFailed)
}

// UpdateFace swaps the live session's face material. Failure is non-fatal:
// the session stays live with the previous face, id and status unchanged.
func (o *Orchestrator) UpdateFace(ctx context.Context, imageURL string) error {
	if imageURL == "" {
		return fmt.Errorf("%w: sourceImageUrl", core.ErrValidation)
	}
	if !o.op.TryLock() {
		return core.ErrBusy
	}
	defer o.op.Unlock()

	o.mu.Lock()
	if o.state != StateLive || o.session == nil {
		o.mu.Unlock()
		return core.ErrInvalidSession
	}
	id := o.session.ID
	o.state = StateUpdatingFace
	o.mu.Unlock()
	defer o.setState(StateLive)

	marks, err := o.Swap.DetectFace(ctx, imageURL)
	if err != nil {
		return err
	}
	if err := o.Swap.UpdateSession(ctx, id, imageURL, marks); err != nil {
		return err
	}

	o.mu.Lock()
	o.session.FaceURL = imageURL
	o.mu.Unlock()
	log.Info().Str("module", "orch").Str("session_id", string(id)).Str("image", imageURL).Msg("face updated")
	return nil
}

// Stop tears the session down from any state: unpublish, leave, close, each
// attempted even if an earlier one fails, then local bookkeeping is
// cleared. It never errors and always settles in Idle, so calling it twice
// or after a failed start is safe. A stop issued while a start is in flight
// waits for the start to settle and then compensates.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.op.Lock()
	defer o.op.Unlock()

	o.mu.Lock()
	if o.state == StateIdle && o.session == nil {
		o.mu.Unlock()
		return nil
	}
	o.state = StateStopping
	o.mu.Unlock()
	log.Info().Str("module", "orch").Msg("stopping swap session")

	o.teardown(ctx)
	o.setState(StateIdle)
	return nil
}

// Shutdown is the teardown-on-unmount path: same stopping sequence, fired
// when the orchestrator is discarded mid-session. Failures here are logged
// only; there is no surface left to show them on.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	if err := o.Stop(ctx); err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("shutdown stop")
	}
}
