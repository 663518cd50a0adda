package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"VoxNote/core/audio/audiotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireFFmpeg(t *testing.T) *FFmpegProcessor {
	t.Helper()
	p := NewFFmpegProcessor("")
	if err := p.Available(); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath(p.ffprobePath()); err != nil {
		t.Skip("ffprobe not installed")
	}
	return p
}

func TestFFprobePathFollowsFFmpegPath(t *testing.T) {
	assert.Equal(t, "ffprobe", NewFFmpegProcessor("").ffprobePath())
	assert.Equal(t, filepath.Join("/opt/ffmpeg/bin", "ffprobe"),
		NewFFmpegProcessor(filepath.Join("/opt/ffmpeg/bin", "ffmpeg")).ffprobePath())
}

func TestListChunksOrdersByIndex(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"rec_002.mp3", "rec_000.mp3", "rec_010.mp3", "rec_001.mp3", "other_000.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "rec_999.mp3"), 0o700))

	chunks, err := listChunks(dir, "rec_")
	require.NoError(t, err)

	var names []string
	for _, c := range chunks {
		names = append(names, filepath.Base(c))
	}
	assert.Equal(t, []string{"rec_000.mp3", "rec_001.mp3", "rec_002.mp3", "rec_010.mp3"}, names)
}

func TestListChunksMissingDir(t *testing.T) {
	_, err := listChunks(filepath.Join(t.TempDir(), "missing"), "rec_")
	assert.Error(t, err)
}

func TestSplitAndProbeFile(t *testing.T) {
	p := requireFFmpeg(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "visit.wav")
	require.NoError(t, os.WriteFile(input, audiotest.WAV(5), 0o600))

	format, seconds, err := p.ProbeFile(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "wav", format)
	assert.InDelta(t, 5.0, seconds, 0.1)

	out := t.TempDir()
	chunks, err := p.Split(context.Background(), input, out, 2)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	for i, c := range chunks {
		assert.True(t, strings.HasPrefix(filepath.Base(c), "visit_"))
		assert.Equal(t, ".wav", filepath.Ext(c))
		if i > 0 {
			assert.Less(t, chunks[i-1], c)
		}
	}
}

func TestProbeFileRejectsNonAudio(t *testing.T) {
	p := requireFFmpeg(t)
	input := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("plain text, no audio stream"), 0o600))

	_, _, err := p.ProbeFile(context.Background(), input)
	assert.Error(t, err)
}
