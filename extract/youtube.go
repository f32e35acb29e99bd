package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/google/uuid"
	"github.com/kkdai/youtube/v2"
)

var (
	ErrEmptyAudio   = errors.New("downloaded audio is empty")
	ErrNoAudioTrack = errors.New("video has no audio-only stream")

	embedPath = regexp.MustCompile(`^/embed/([a-zA-Z0-9_-]{11})`)
)

// YouTubeID extracts the video id from watch, short and embed URLs. It
// returns an empty string when the URL is not recognised.
func YouTubeID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	switch u.Hostname() {
	case "www.youtube.com", "youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	}

	if m := embedPath.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return ""
}

// AudioSource downloads the audio track of a video.
type AudioSource interface {
	Audio(ctx context.Context, videoURL string) (io.ReadCloser, string, error)
}

// SpeechRecognizer turns an audio payload into text.
type SpeechRecognizer interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// YouTubeAudio picks the best audio-only format of a video.
type YouTubeAudio struct {
	Client youtube.Client
}

func (y *YouTubeAudio) Audio(ctx context.Context, videoURL string) (io.ReadCloser, string, error) {
	video, err := y.Client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch video metadata: %w", err)
	}

	var best *youtube.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	if best == nil {
		return nil, "", ErrNoAudioTrack
	}

	stream, _, err := y.Client.GetStreamContext(ctx, video, best)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio stream: %w", err)
	}
	return stream, best.MimeType, nil
}

// Transcriber downloads video audio and saves its transcript as
// yb_<name>.txt.
type Transcriber struct {
	Source   AudioSource
	ASR      SpeechRecognizer
	AudioDir string
	TextDir  string
}

// TranscriptPath is where the transcript of name is stored.
func (t *Transcriber) TranscriptPath(name string) string {
	return filepath.Join(t.TextDir, "yb_"+name+".txt")
}

// Transcribe returns the transcript path and text.
func (t *Transcriber) Transcribe(ctx context.Context, videoURL, name string) (string, string, error) {
	if err := os.MkdirAll(t.AudioDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create audio dir: %w", err)
	}

	logging.Infof("Downloading audio from YouTube: %s", videoURL)
	stream, mimeType, err := t.Source.Audio(ctx, videoURL)
	if err != nil {
		return "", "", err
	}
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	if err != nil {
		return "", "", fmt.Errorf("failed to download audio: %w", err)
	}
	if len(audio) == 0 {
		return "", "", ErrEmptyAudio
	}

	contentType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		contentType = "audio/mpeg"
	}
	audioPath := filepath.Join(t.AudioDir, fmt.Sprintf("%s_%s.%s", name, strings.ReplaceAll(uuid.NewString(), "-", ""), audioExt(contentType)))
	if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to save audio: %w", err)
	}
	logging.Infof("Audio saved to: %s (%d bytes)", audioPath, len(audio))

	text, err := t.ASR.Transcribe(ctx, audio, contentType)
	if err != nil {
		return "", "", fmt.Errorf("failed to transcribe audio: %w", err)
	}

	if err := os.MkdirAll(t.TextDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create transcript dir: %w", err)
	}
	path := t.TranscriptPath(name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to save transcript: %w", err)
	}
	logging.Infof("Transcript saved to: %s", path)

	return path, text, nil
}

func audioExt(contentType string) string {
	switch contentType {
	case "audio/mp4":
		return "m4a"
	case "audio/webm":
		return "webm"
	case "audio/mpeg":
		return "mp3"
	}
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		return sub
	}
	return "audio"
}
