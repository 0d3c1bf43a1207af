package rtc

import (
	"bytes"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestSignalingSendFailuresAreLogged(t *testing.T) {
	buf := captureLog(t)
	c := NewClient("ws://unused")

	c.sendCandidate(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host"})
	assert.Contains(t, buf.String(), "send candidate")

	c.sendAnswer("v=0")
	assert.Contains(t, buf.String(), "send answer")
}

func TestGuardsBeforeJoin(t *testing.T) {
	c := NewClient("ws://unused")

	assert.Error(t, c.Subscribe(7, "video"), "subscribe requires a joined channel")
	assert.NoError(t, c.Leave(t.Context()), "leave before join is a no-op")
	assert.Empty(t, c.RemoteParticipants())
}
