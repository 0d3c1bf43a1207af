package http

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keiyara/faceswap/internal/core"
	"github.com/keiyara/faceswap/internal/domain"
)

const observerLinkTTL = 15 * time.Minute

// LinkSigner issues the observer page's join token. The observer uid is
// offset from the publisher uid so the two never collide in the channel's
// numeric id space.
type LinkSigner struct {
	secret    []byte
	uidOffset uint32
}

func NewLinkSigner(secret string, uidOffset uint32) *LinkSigner {
	return &LinkSigner{secret: []byte(secret), uidOffset: uidOffset}
}

func (s *LinkSigner) Sign(creds domain.Credentials) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("%w: session secret", core.ErrConfiguration)
	}

	expiresAt := time.Now().Add(observerLinkTTL)
	claims := jwt.MapClaims{
		"channel": creds.ChannelID,
		"app_id":  creds.AppID,
		"token":   creds.Token,
		"uid":     creds.UID() + s.uidOffset,
		"pub_uid": creds.UID(),
		"exp":     expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses an observer token back into join credentials.
func (s *LinkSigner) Verify(token string) (domain.Credentials, uint32, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return domain.Credentials{}, 0, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return domain.Credentials{}, 0, fmt.Errorf("invalid observer token")
	}

	channel, _ := claims["channel"].(string)
	appID, _ := claims["app_id"].(string)
	rtcToken, _ := claims["token"].(string)
	pubUID, _ := claims["pub_uid"].(float64)
	uid, _ := claims["uid"].(float64)

	creds := domain.Credentials{
		ChannelID: channel,
		AppID:     appID,
		Token:     rtcToken,
		UserID:    fmt.Sprintf("%d", uint32(pubUID)),
	}
	return creds, uint32(uid), nil
}
