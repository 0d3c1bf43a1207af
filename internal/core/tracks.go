package core

import "sync"

// LocalTracks pairs the captured audio and video handles. The orchestrator
// owns them exclusively for the duration of a session and must not publish
// until both are present.
type LocalTracks struct {
	Audio LocalTrack
	Video LocalTrack

	once    sync.Once
	release func()
}

func NewLocalTracks(audio, video LocalTrack, release func()) *LocalTracks {
	return &LocalTracks{Audio: audio, Video: video, release: release}
}

// Complete reports whether both tracks exist.
func (t *LocalTracks) Complete() bool {
	return t != nil && t.Audio != nil && t.Video != nil
}

// Close releases the capture devices. Safe to call more than once.
func (t *LocalTracks) Close() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		if t.release != nil {
			t.release()
		}
	})
}
