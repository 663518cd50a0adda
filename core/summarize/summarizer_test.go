package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"VoxNote/core/apperr"
	"VoxNote/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	messages    []model.OpenAIChatMessage
	maxTokens   int
	temperature float64
	calls       int
	reply       string
	err         error
}

func (f *fakeChat) ChatCompletion(ctx context.Context, messages []model.OpenAIChatMessage, maxTokens int, temperature float64) (string, error) {
	f.calls++
	f.messages = messages
	f.maxTokens = maxTokens
	f.temperature = temperature
	return f.reply, f.err
}

func submittedText(t *testing.T, f *fakeChat) string {
	t.Helper()
	require.Len(t, f.messages, 2)
	require.True(t, strings.HasPrefix(f.messages[1].Content, userPromptPrefix))
	return strings.TrimPrefix(f.messages[1].Content, userPromptPrefix)
}

func TestSummarizeTruncatesToExactPrefix(t *testing.T) {
	chat := &fakeChat{reply: "S: ...\nO: ...\nA: ...\nP: ..."}
	s := NewSummarizer(Config{MaxChars: 16000, MaxTokens: 500, Temperature: 0.7}, chat)

	text := strings.Repeat("abcdefghij ", 2000) // 22000 字符
	res, err := s.Summarize(context.Background(), text)
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Equal(t, 16000, res.InputLen)
	assert.Equal(t, text[:16000], submittedText(t, chat))
	assert.Equal(t, 500, chat.maxTokens)
	assert.Equal(t, 0.7, chat.temperature)
	assert.Equal(t, SystemPrompt, chat.messages[0].Content)
}

func TestSummarizeShortInputUnmodified(t *testing.T) {
	chat := &fakeChat{reply: "report"}
	s := NewSummarizer(Config{}, chat)

	text := strings.Repeat("x", 16000)
	res, err := s.Summarize(context.Background(), text)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.Equal(t, text, submittedText(t, chat))
	assert.Equal(t, "report", res.Text)
}

func TestTruncateCountsCharactersNotBytes(t *testing.T) {
	out, truncated := Truncate("牙齿检查报告", 4)
	assert.True(t, truncated)
	assert.Equal(t, "牙齿检查", out)

	out, truncated = Truncate("牙齿", 4)
	assert.False(t, truncated)
	assert.Equal(t, "牙齿", out)
}

func TestSummarizeEmptyInput(t *testing.T) {
	chat := &fakeChat{}
	s := NewSummarizer(Config{}, chat)

	for _, text := range []string{"", "   \n"} {
		_, err := s.Summarize(context.Background(), text)
		require.Error(t, err)
		assert.Equal(t, apperr.EmptyInput, apperr.KindOf(err))
	}
	assert.Zero(t, chat.calls)
}

func TestSummarizeRemoteFailure(t *testing.T) {
	chat := &fakeChat{err: errors.New("API returned status 500: boom")}
	s := NewSummarizer(Config{}, chat)

	_, err := s.Summarize(context.Background(), "some transcript")
	require.Error(t, err)
	assert.Equal(t, apperr.SummarizationFailed, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "boom")
}
