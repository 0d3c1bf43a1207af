package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

func TestLinkSignerRoundTrip(t *testing.T) {
	signer := NewLinkSigner("secret", 1000)

	creds := domain.Credentials{
		ChannelID: "ch-9",
		UserID:    "7",
		Token:     "rtc-token",
		AppID:     "app-9",
	}
	token, expiresAt, err := signer.Sign(creds)
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	got, observerUID, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ch-9", got.ChannelID)
	assert.Equal(t, "app-9", got.AppID)
	assert.Equal(t, "rtc-token", got.Token)
	assert.Equal(t, "7", got.UserID)
	assert.Equal(t, uint32(1007), observerUID)
}

func TestLinkSignerRequiresSecret(t *testing.T) {
	_, _, err := NewLinkSigner("", 1000).Sign(domain.Credentials{ChannelID: "ch"})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestLinkSignerRejectsForeignSignature(t *testing.T) {
	token, _, err := NewLinkSigner("secret-a", 1000).Sign(domain.Credentials{ChannelID: "ch", UserID: "1"})
	require.NoError(t, err)

	_, _, err = NewLinkSigner("secret-b", 1000).Verify(token)
	assert.Error(t, err)
}
