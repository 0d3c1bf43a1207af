package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

// Observer is the passive viewer surface: it joins the channel with the
// audience capability, never publishes, and watches the swapped output.
type Observer struct {
	transport core.TransportClient
	registry  *Registry

	// uidOffset keeps the observer's own id out of the publisher's numeric
	// id space; joining with the publisher's id silently breaks the call.
	uidOffset uint32

	publisherUID uint32
	joined       bool
}

func NewObserver(transport core.TransportClient, uidOffset uint32) *Observer {
	return &Observer{
		transport: transport,
		registry:  NewRegistry(transport),
		uidOffset: uidOffset,
	}
}

// Join enters the channel using the publishing session's credentials with
// the observer's offset id.
func (o *Observer) Join(ctx context.Context, creds domain.Credentials, fallbackAppID string) error {
	appID := creds.AppID
	if appID == "" {
		appID = fallbackAppID
	}
	if appID == "" {
		return fmt.Errorf("%w: transport app id", core.ErrConfiguration)
	}

	if err := o.transport.SetRole(core.RoleAudience); err != nil {
		return err
	}
	uid := creds.UID() + o.uidOffset
	if err := o.transport.Join(ctx, appID, creds.ChannelID, creds.Token, uid); err != nil {
		return err
	}
	o.publisherUID = creds.UID()
	o.joined = true
	log.Info().Str("module", "app.observer").
		Str("channel", creds.ChannelID).Uint32("uid", uid).
		Msg("observer joined")
	return nil
}

// Swapped returns the processed output: the remote participant that is not
// the publisher.
func (o *Observer) Swapped() (domain.RemoteParticipant, bool) {
	if !o.joined {
		return domain.RemoteParticipant{}, false
	}
	return o.registry.Swapped(o.publisherUID)
}

// Leave is the observer's entire teardown; it owns no other resources.
func (o *Observer) Leave(ctx context.Context) error {
	if !o.joined {
		return nil
	}
	o.joined = false
	return o.transport.Leave(ctx)
}
