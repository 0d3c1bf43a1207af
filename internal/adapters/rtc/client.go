// Package rtc is the client side of the real-time transport provider: a
// signaling websocket to the provider gateway plus one peer connection per
// joined channel. It implements core.TransportClient.
package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

const (
	writeTimeout = 5 * time.Second
	joinTimeout  = 10 * time.Second
)

type Client struct {
	gatewayURL string

	mu         sync.RWMutex
	role       core.Role
	ws         *websocket.Conn
	conn       *peerConnection
	joined     bool
	localUID   uint32
	senders    map[string]*webrtc.RTPSender
	remotes    map[uint32]*domain.RemoteParticipant
	onPresence func(core.PresenceEvent)
	cancel     context.CancelFunc

	wsWriteMu sync.Mutex
}

func NewClient(gatewayURL string) *Client {
	return &Client{
		gatewayURL: gatewayURL,
		senders:    make(map[string]*webrtc.RTPSender),
		remotes:    make(map[uint32]*domain.RemoteParticipant),
	}
}

func (c *Client) SetRole(role core.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joined {
		return &core.TransportError{Op: "set-role", Err: errors.New("already joined")}
	}
	c.role = role
	return nil
}

func (c *Client) OnPresence(fn func(core.PresenceEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPresence = fn
}

// Join dials the gateway, announces the channel credentials and waits for
// the gateway's ack. The uid must be the numeric id issued by the
// processing service; the gateway rejects collisions silently, so a wrong
// id breaks the call with no protocol-level error.
func (c *Client) Join(ctx context.Context, appID, channelID, token string, uid uint32) error {
	c.mu.Lock()
	if c.joined {
		c.mu.Unlock()
		return &core.TransportError{Op: "join", Err: errors.New("already joined")}
	}
	role := c.role
	if role == "" {
		role = core.RoleAudience
	}
	c.mu.Unlock()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return &core.TransportError{Op: "join", Err: err}
	}

	conn, err := newPeerConnection(defaultWebRTCConfig(), channelID)
	if err != nil {
		_ = ws.Close()
		return &core.TransportError{Op: "join", Err: err}
	}
	conn.onICE = c.sendCandidate
	conn.OnTrack(c.handleTrack)

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	conn.Start(ctx)

	c.mu.Lock()
	c.ws = ws
	c.conn = conn
	c.cancel = cancel
	c.localUID = uid
	c.mu.Unlock()

	if err := c.send(joinMessage{
		Type:      "join",
		AppID:     appID,
		ChannelID: channelID,
		Token:     token,
		UID:       uid,
		Role:      string(role),
	}); err != nil {
		c.reset()
		return &core.TransportError{Op: "join", Err: err}
	}

	if err := c.awaitJoinAck(ws); err != nil {
		c.reset()
		return &core.TransportError{Op: "join", Err: err}
	}

	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()
	log.Info().Str("module", "rtc").Str("channel", channelID).Uint32("uid", uid).Str("role", string(role)).Msg("joined channel")

	go c.readLoop(ctx, ws)
	return nil
}

func (c *Client) awaitJoinAck(ws *websocket.Conn) error {
	_ = ws.SetReadDeadline(time.Now().Add(joinTimeout))
	defer ws.SetReadDeadline(time.Time{})

	_, data, err := ws.ReadMessage()
	if err != nil {
		return err
	}
	var ack ackMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return err
	}
	if ack.Type != "joined" {
		if ack.Error != "" {
			return errors.New(ack.Error)
		}
		return errors.New("unexpected gateway reply: " + ack.Type)
	}
	return nil
}

// Publish attaches local tracks and asks the gateway to renegotiate. The
// host capability must have been set before joining.
func (c *Client) Publish(tracks ...core.LocalTrack) error {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return &core.TransportError{Op: "publish", Err: errors.New("not joined")}
	}
	if c.role != core.RoleHost {
		c.mu.Unlock()
		return &core.TransportError{Op: "publish", Err: errors.New("audience role cannot publish")}
	}
	conn := c.conn
	c.mu.Unlock()

	for _, t := range tracks {
		sender, err := conn.AddLocalTrack(t)
		if err != nil {
			return &core.TransportError{Op: "publish", Err: err}
		}
		c.mu.Lock()
		c.senders[t.ID()] = sender
		c.mu.Unlock()
	}
	if err := c.send(envelope{Type: "publish"}); err != nil {
		return &core.TransportError{Op: "publish", Err: err}
	}
	return nil
}

func (c *Client) Unpublish(tracks ...core.LocalTrack) error {
	c.mu.Lock()
	if !c.joined {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	for _, t := range tracks {
		c.mu.Lock()
		sender, ok := c.senders[t.ID()]
		delete(c.senders, t.ID())
		c.mu.Unlock()
		if !ok {
			continue
		}
		if err := conn.RemoveTrack(sender); err != nil {
			return &core.TransportError{Op: "unpublish", Err: err}
		}
	}
	if err := c.send(envelope{Type: "unpublish"}); err != nil {
		return &core.TransportError{Op: "unpublish", Err: err}
	}
	return nil
}

// Leave is a no-op when the client never joined.
func (c *Client) Leave(ctx context.Context) error {
	c.mu.Lock()
	joined := c.joined
	c.mu.Unlock()
	if !joined {
		return nil
	}
	// Best effort; the gateway drops us either way once the socket closes.
	_ = c.send(envelope{Type: "leave"})
	c.reset()
	log.Info().Str("module", "rtc").Msg("left channel")
	return nil
}

func (c *Client) Subscribe(uid uint32, kind core.MediaKind) error {
	c.mu.RLock()
	joined := c.joined
	c.mu.RUnlock()
	if !joined {
		return &core.TransportError{Op: "subscribe", Err: errors.New("not joined")}
	}
	if err := c.send(subscribeMessage{Type: "subscribe", UID: uid, Media: string(kind)}); err != nil {
		return &core.TransportError{Op: "subscribe", Err: err}
	}
	return nil
}

// RemoteParticipants returns the roster the gateway reported, with whatever
// tracks have arrived so far. This is the authoritative snapshot presence
// consumers recompute from.
func (c *Client) RemoteParticipants() []domain.RemoteParticipant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.RemoteParticipant, 0, len(c.remotes))
	for _, p := range c.remotes {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

func (c *Client) readLoop(ctx context.Context, ws *websocket.Conn) {
	defer log.Info().Str("module", "rtc").Msg("readLoop closing")
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := ws.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Str("module", "rtc").Msg("readLoop read error")
				}
				return
			}
			c.handleMessage(data)
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad json")
		return
	}

	switch env.Type {
	case "offer":
		c.handleOffer(data)
	case "candidate":
		c.handleCandidate(data)
	case "participant-published", "participant-unpublished", "participant-joined", "participant-left":
		c.handlePresence(data)
	default:
		log.Warn().Str("module", "rtc").Str("type", env.Type).Msg("unknown gateway message")
	}
}

func (c *Client) handleOffer(data []byte) {
	var m sdpMessage
	if err := json.Unmarshal(data, &m); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad offer payload")
		return
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	answer, err := conn.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  m.SDP,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("negotiation failed")
		return
	}
	c.sendAnswer(answer.SDP)
}

func (c *Client) sendAnswer(sdp string) {
	if err := c.send(sdpMessage{Type: "answer", SDP: sdp}); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("send answer")
	}
}

func (c *Client) sendCandidate(ci webrtc.ICECandidateInit) {
	if err := c.send(candidateMessage{Type: "candidate", Candidate: ci}); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("send candidate")
	}
}

func (c *Client) handleCandidate(data []byte) {
	var m candidateMessage
	if err := json.Unmarshal(data, &m); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad candidate payload")
		return
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}
	if err := conn.AddICECandidate(m.Candidate); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("add candidate")
	}
}

func (c *Client) handlePresence(data []byte) {
	var m presenceMessage
	if err := json.Unmarshal(data, &m); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("bad presence payload")
		return
	}
	ev := core.PresenceEvent{
		Kind:  core.PresenceKind(m.Type),
		UID:   m.UID,
		Media: core.MediaKind(m.Media),
	}

	c.mu.Lock()
	switch ev.Kind {
	case core.PresenceJoined, core.PresencePublished:
		if _, ok := c.remotes[ev.UID]; !ok {
			c.remotes[ev.UID] = &domain.RemoteParticipant{UID: ev.UID}
		}
	case core.PresenceUnpublished:
		if p, ok := c.remotes[ev.UID]; ok {
			switch ev.Media {
			case core.MediaVideo:
				p.VideoTrack = nil
			case core.MediaAudio:
				p.AudioTrack = nil
			}
		}
	case core.PresenceLeft:
		delete(c.remotes, ev.UID)
	}
	fn := c.onPresence
	c.mu.Unlock()

	log.Info().Str("module", "rtc").Str("event", string(ev.Kind)).Uint32("uid", ev.UID).Msg("presence")
	if fn != nil {
		fn(ev)
	}
}

// handleTrack attaches an arriving remote track to its participant. The
// gateway sets the stream id to the publisher's uid.
func (c *Client) handleTrack(_ context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	n, err := strconv.ParseUint(track.StreamID(), 10, 32)
	if err != nil {
		log.Warn().Str("module", "rtc").Str("stream_id", track.StreamID()).Msg("track without numeric stream id")
		return
	}
	uid := uint32(n)

	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.remotes[uid]
	if !ok {
		p = &domain.RemoteParticipant{UID: uid}
		c.remotes[uid] = p
	}
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		p.VideoTrack = track
	} else {
		p.AudioTrack = track
	}
}

func (c *Client) send(v any) error {
	c.mu.RLock()
	ws := c.ws
	c.mu.RUnlock()
	if ws == nil {
		return errors.New("not connected")
	}

	c.wsWriteMu.Lock()
	defer c.wsWriteMu.Unlock()
	if err := ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return ws.WriteJSON(v)
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.joined = false
	c.senders = make(map[string]*webrtc.RTPSender)
	c.remotes = make(map[uint32]*domain.RemoteParticipant)
}
