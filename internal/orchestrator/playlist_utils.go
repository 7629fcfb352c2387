package orchestrator

import (
	"errors"
	"fmt"
	"os"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
)

// PlaylistInfo summarises the media playlist the transcoder keeps rewriting.
type PlaylistInfo struct {
	Segments       int
	MediaSequence  int
	TargetDuration int
	Ended          bool
}

// playlistExists reports whether the manifest is on disk. It is the only
// reliable signal that the transcoder produced at least one segment.
func playlistExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// ReadPlaylist parses the media playlist at path.
func ReadPlaylist(path string) (PlaylistInfo, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return PlaylistInfo{}, err
	}

	pl, err := playlist.Unmarshal(buf)
	if err != nil {
		return PlaylistInfo{}, fmt.Errorf("parse playlist %s: %w", path, err)
	}

	media, ok := pl.(*playlist.Media)
	if !ok {
		return PlaylistInfo{}, errors.New("not a media playlist")
	}

	return PlaylistInfo{
		Segments:       len(media.Segments),
		MediaSequence:  media.MediaSequence,
		TargetDuration: media.TargetDuration,
		Ended:          media.Endlist,
	}, nil
}
