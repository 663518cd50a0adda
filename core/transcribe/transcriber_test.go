package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"VoxNote/core/apperr"
	"VoxNote/core/audio"
	"VoxNote/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpeech struct {
	calls     []string
	failOn    int // 第几次调用失败（从 1 开始），0 表示不失败
	responses []*model.OpenAITranscriptionResponse
}

func (f *fakeSpeech) Transcribe(ctx context.Context, filename string, data []byte) (*model.OpenAITranscriptionResponse, error) {
	f.calls = append(f.calls, filename)
	n := len(f.calls)
	if f.failOn == n {
		return nil, errors.New("upstream 500")
	}
	if n <= len(f.responses) {
		return f.responses[n-1], nil
	}
	return &model.OpenAITranscriptionResponse{}, nil
}

type fakeSplitter struct {
	unavailable error
	chunks      int
	err         error
}

func (f *fakeSplitter) Available() error { return f.unavailable }

func (f *fakeSplitter) Split(ctx context.Context, inputFile, outputDir string, chunkSeconds float64) ([]string, error) {
	base := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	var out []string
	for i := 0; i < f.chunks; i++ {
		p := filepath.Join(outputDir, fmt.Sprintf("%s_%03d%s", base, i, filepath.Ext(inputFile)))
		if err := os.WriteFile(p, []byte(fmt.Sprintf("chunk-%d", i)), 0600); err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, f.err
}

func newTestTranscriber(t *testing.T, client SpeechClient, splitter Splitter) (*Transcriber, *[]string) {
	t.Helper()
	tr := NewTranscriber(Config{ScratchDir: t.TempDir()}, client, splitter)
	var removed []string
	tr.remove = func(p string) error {
		removed = append(removed, filepath.Base(p))
		return os.Remove(p)
	}
	return tr, &removed
}

func mp3Probe(seconds float64) audio.ProbeResult {
	return audio.ProbeResult{DurationSeconds: seconds, Format: audio.FormatMP3}
}

func TestTranscribeSingleShot(t *testing.T) {
	speech := &fakeSpeech{responses: []*model.OpenAITranscriptionResponse{{
		Text:  "hello there world",
		Words: []model.TranscriptWord{{Word: "hello", Start: 0}, {Word: "there", Start: 1}, {Word: "world", Start: 12}},
	}}}
	splitter := &fakeSplitter{}
	tr, removed := newTestTranscriber(t, speech, splitter)

	res, err := tr.Transcribe(context.Background(), []byte("audio"), mp3Probe(30))
	require.NoError(t, err)
	assert.Equal(t, []string{"recording.mp3"}, speech.calls)
	assert.Equal(t, 1, res.Calls)
	assert.Equal(t, "[00:00] hello there\n[00:10] world", res.Text)
	assert.Empty(t, *removed, "single-shot path writes no temp files")
}

func TestTranscribeThresholdIsInclusive(t *testing.T) {
	speech := &fakeSpeech{}
	splitter := &fakeSplitter{unavailable: errors.New("must not be consulted")}
	tr, _ := newTestTranscriber(t, speech, splitter)

	_, err := tr.Transcribe(context.Background(), []byte("audio"), mp3Probe(600))
	require.NoError(t, err)
	assert.Len(t, speech.calls, 1)
}

func TestTranscribeChunkedTwoCalls(t *testing.T) {
	speech := &fakeSpeech{responses: []*model.OpenAITranscriptionResponse{
		{Text: "first", Words: []model.TranscriptWord{{Word: "first", Start: 0}, {Word: "late", Start: 599}}},
		{Text: "second", Words: []model.TranscriptWord{{Word: "second", Start: 0.5}}},
	}}
	splitter := &fakeSplitter{chunks: 2}
	tr, removed := newTestTranscriber(t, speech, splitter)

	res, err := tr.Transcribe(context.Background(), []byte("long audio"), mp3Probe(1200))
	require.NoError(t, err)
	assert.Equal(t, []string{"recording_000.mp3", "recording_001.mp3"}, speech.calls)
	assert.Equal(t, 2, res.Calls)

	require.Len(t, res.Segments, 3)
	assert.Equal(t, 599.0, res.Segments[1].StartOffsetSeconds)
	assert.Equal(t, 600.5, res.Segments[2].StartOffsetSeconds)
	assert.Equal(t, "[00:00] first\n[09:50] late\n[10:00] second", res.Text)

	assert.Equal(t, []string{"recording.mp3", "recording_000.mp3", "recording_001.mp3"}, *removed)
	entries, err := os.ReadDir(tr.cfg.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTranscribeChunkedFailureCleansUp(t *testing.T) {
	speech := &fakeSpeech{failOn: 2}
	splitter := &fakeSplitter{chunks: 3}
	tr, removed := newTestTranscriber(t, speech, splitter)

	_, err := tr.Transcribe(context.Background(), []byte("long audio"), mp3Probe(1500))
	require.Error(t, err)
	assert.Equal(t, apperr.TranscriptionFailed, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "chunk 1")
	assert.Len(t, speech.calls, 2, "remaining chunks are not attempted after a failure")
	assert.Equal(t, []string{"recording.mp3", "recording_000.mp3", "recording_001.mp3", "recording_002.mp3"}, *removed)

	entries, _ := os.ReadDir(tr.cfg.ScratchDir)
	assert.Empty(t, entries)
}

func TestTranscribeSplitFailureCleansPartialChunks(t *testing.T) {
	splitter := &fakeSplitter{chunks: 1, err: errors.New("ffmpeg exited 1")}
	tr, removed := newTestTranscriber(t, &fakeSpeech{}, splitter)

	_, err := tr.Transcribe(context.Background(), []byte("long audio"), mp3Probe(1200))
	require.Error(t, err)
	assert.Equal(t, apperr.TranscriptionFailed, apperr.KindOf(err))
	assert.Equal(t, []string{"recording.mp3", "recording_000.mp3"}, *removed)
}

func TestTranscribeWithoutSplitterBinary(t *testing.T) {
	speech := &fakeSpeech{}
	splitter := &fakeSplitter{unavailable: errors.New("ffmpeg not found")}
	tr, _ := newTestTranscriber(t, speech, splitter)

	_, err := tr.Transcribe(context.Background(), []byte("long audio"), mp3Probe(601))
	require.Error(t, err)
	assert.Equal(t, apperr.TranscriptionFailed, apperr.KindOf(err))
	assert.Empty(t, speech.calls)
}

func TestTranscribeRemoteErrorSingleShot(t *testing.T) {
	tr, _ := newTestTranscriber(t, &fakeSpeech{failOn: 1}, &fakeSplitter{})

	_, err := tr.Transcribe(context.Background(), []byte("audio"), mp3Probe(5))
	assert.Equal(t, apperr.TranscriptionFailed, apperr.KindOf(err))
}

func TestTranscribeFallsBackToPlainText(t *testing.T) {
	speech := &fakeSpeech{responses: []*model.OpenAITranscriptionResponse{{Text: "  no timestamps here  "}}}
	tr, _ := newTestTranscriber(t, speech, &fakeSplitter{})

	res, err := tr.Transcribe(context.Background(), []byte("audio"), mp3Probe(5))
	require.NoError(t, err)
	assert.Equal(t, "no timestamps here", res.Text)
}

func TestTranscribeEmptyResultIsEmptyString(t *testing.T) {
	tr, _ := newTestTranscriber(t, &fakeSpeech{}, &fakeSplitter{})

	res, err := tr.Transcribe(context.Background(), []byte("audio"), mp3Probe(5))
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
}
