// Package transcribe 将音频转写为带时间标记的文本，长音频先切分再逐段转写。
package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"VoxNote/core/apperr"
	"VoxNote/core/audio"
	"VoxNote/logger"
	"VoxNote/model"
)

// SpeechClient 远程转写接口，返回带单词级时间戳的结果
type SpeechClient interface {
	Transcribe(ctx context.Context, filename string, data []byte) (*model.OpenAITranscriptionResponse, error)
}

// Splitter 将音频文件切分为固定时长的顺序分片
type Splitter interface {
	Available() error
	Split(ctx context.Context, inputFile, outputDir string, chunkSeconds float64) ([]string, error)
}

// Config 转写参数
type Config struct {
	ChunkThresholdSeconds float64
	ChunkLengthSeconds    float64
	LineIntervalSeconds   float64
	ScratchDir            string
}

// TranscriptionResult 转写结果
type TranscriptionResult struct {
	Text     string
	Segments []model.TranscriptSegment
	Calls    int // 远程转写调用次数
}

// Transcriber 音频转写器
type Transcriber struct {
	cfg      Config
	client   SpeechClient
	splitter Splitter
	remove   func(string) error
}

// NewTranscriber 创建转写器
func NewTranscriber(cfg Config, client SpeechClient, splitter Splitter) *Transcriber {
	if cfg.ChunkThresholdSeconds <= 0 {
		cfg.ChunkThresholdSeconds = 600
	}
	if cfg.ChunkLengthSeconds <= 0 {
		cfg.ChunkLengthSeconds = 600
	}
	if cfg.LineIntervalSeconds <= 0 {
		cfg.LineIntervalSeconds = 10
	}
	return &Transcriber{
		cfg:      cfg,
		client:   client,
		splitter: splitter,
		remove:   os.Remove,
	}
}

// Transcribe 转写音频。probe 给出的时长决定走单次调用还是分片调用。
// 分片一旦开始就会逐个执行到完成或失败为止。
func (t *Transcriber) Transcribe(ctx context.Context, data []byte, probe audio.ProbeResult) (*TranscriptionResult, error) {
	start := time.Now()
	var (
		result *TranscriptionResult
		err    error
	)
	if probe.DurationSeconds <= t.cfg.ChunkThresholdSeconds {
		result, err = t.transcribeSingle(ctx, data, probe.Format)
	} else {
		result, err = t.transcribeChunked(ctx, data, probe.Format)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("[Transcriber] 转写完成",
		logger.Int("calls", result.Calls),
		logger.Int("segments", len(result.Segments)),
		logger.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (t *Transcriber) transcribeSingle(ctx context.Context, data []byte, format audio.Format) (*TranscriptionResult, error) {
	resp, err := t.client.Transcribe(ctx, "recording"+format.Extension(), data)
	if err != nil {
		return nil, apperr.New(apperr.TranscriptionFailed, "transcription failed", err)
	}
	return t.build([][]model.TranscriptWord{resp.Words}, []string{resp.Text}), nil
}

func (t *Transcriber) transcribeChunked(ctx context.Context, data []byte, format audio.Format) (*TranscriptionResult, error) {
	if err := t.splitter.Available(); err != nil {
		return nil, apperr.New(apperr.TranscriptionFailed, "audio splitting unavailable", err)
	}

	workDir, err := os.MkdirTemp(t.cfg.ScratchDir, "voxnote-chunks-*")
	if err != nil {
		return nil, apperr.New(apperr.TranscriptionFailed, "create chunk directory", err)
	}

	original := filepath.Join(workDir, "recording"+format.Extension())
	var chunks []string
	defer func() {
		// 先删原始文件，再按顺序删除分片
		t.cleanup(append([]string{original}, chunks...))
		if err := os.Remove(workDir); err != nil && !os.IsNotExist(err) {
			logger.Warn("[Transcriber] 删除分片目录失败", logger.String("dir", workDir), logger.ErrorField(err))
		}
	}()

	if err := os.WriteFile(original, data, 0600); err != nil {
		return nil, apperr.New(apperr.TranscriptionFailed, "write audio for splitting", err)
	}

	chunks, err = t.splitter.Split(ctx, original, workDir, t.cfg.ChunkLengthSeconds)
	if err != nil {
		return nil, apperr.New(apperr.TranscriptionFailed, "split audio", err)
	}

	logger.Info("[Transcriber] 长音频已切分", logger.Int("chunks", len(chunks)))

	words := make([][]model.TranscriptWord, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		chunkData, err := os.ReadFile(chunk)
		if err != nil {
			return nil, apperr.New(apperr.TranscriptionFailed, fmt.Sprintf("read chunk %d", i), err)
		}
		resp, err := t.client.Transcribe(ctx, filepath.Base(chunk), chunkData)
		if err != nil {
			return nil, apperr.New(apperr.TranscriptionFailed, fmt.Sprintf("transcription failed for chunk %d", i), err)
		}
		words = append(words, resp.Words)
		texts = append(texts, resp.Text)
	}

	return t.build(words, texts), nil
}

func (t *Transcriber) build(words [][]model.TranscriptWord, texts []string) *TranscriptionResult {
	segments := MergeChunks(words, t.cfg.ChunkLengthSeconds)
	text := Render(segments, t.cfg.LineIntervalSeconds)
	if len(segments) == 0 {
		// 没有单词时间戳时退回到纯文本
		parts := make([]string, 0, len(texts))
		for _, s := range texts {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
		text = strings.Join(parts, " ")
	}
	return &TranscriptionResult{Text: text, Segments: segments, Calls: len(words)}
}

func (t *Transcriber) cleanup(paths []string) {
	for _, p := range paths {
		if err := t.remove(p); err != nil && !os.IsNotExist(err) {
			logger.Warn("[Transcriber] 删除临时文件失败", logger.String("path", p), logger.ErrorField(err))
		}
	}
}
