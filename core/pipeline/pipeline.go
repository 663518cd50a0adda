// Package pipeline 将上传的音频依次经过探测、转写、摘要、存储，最终在事务中写入笔记。
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"VoxNote/core/apperr"
	"VoxNote/core/audio"
	"VoxNote/core/summarize"
	"VoxNote/core/transcribe"
	"VoxNote/logger"
	"VoxNote/model"
	"VoxNote/repository"
	"VoxNote/storage"
)

// Prober 音频探测
type Prober interface {
	Probe(ctx context.Context, data []byte) (*audio.ProbeResult, error)
}

// Transcriber 音频转写
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, probe audio.ProbeResult) (*transcribe.TranscriptionResult, error)
}

// Summarizer 文本摘要
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*summarize.SummaryResult, error)
}

// ObjectStore 录音对象存储
type ObjectStore interface {
	Store(ctx context.Context, data []byte, folderHint, contentType string) (*storage.UploadResult, error)
}

// StageRecorder 记录状态迁移，失败只记录日志
type StageRecorder interface {
	Record(ctx context.Context, status *model.RunStatus) error
}

// DefaultTitle 既没有标题也没有文件名时使用
const DefaultTitle = "Untitled"

// Request 一次流水线调用的输入，UserID 已经过认证
type Request struct {
	RunID    string
	UserID   int64
	FolderID *int64
	Title    string
	Filename string
	Audio    []byte
}

// Deps 流水线依赖的组件
type Deps struct {
	Prober      Prober
	Transcriber Transcriber
	Summarizer  Summarizer
	Store       ObjectStore
	Notes       repository.NoteStore
	Recorder    StageRecorder // 可选
}

// Pipeline 音频到笔记的处理流水线。
// 任一阶段失败即终止，不重试也不回滚已完成的远程副作用；
// 只有全部阶段成功才会写入笔记。
type Pipeline struct {
	Deps
	folderHint string
	now        func() time.Time
}

// New 创建流水线，folderHint 为录音在对象存储中的目录
func New(deps Deps, folderHint string) *Pipeline {
	return &Pipeline{Deps: deps, folderHint: folderHint, now: time.Now}
}

// Run 执行流水线，失败时返回 *StageError
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.Note, error) {
	start := p.now()
	p.transition(ctx, req, StageReceived, nil, 0)

	probe, err := p.Prober.Probe(ctx, req.Audio)
	if err != nil {
		return nil, p.fail(ctx, req, StageProbed, err)
	}
	p.transition(ctx, req, StageProbed, nil, 0)

	transcript, err := p.Transcriber.Transcribe(ctx, req.Audio, *probe)
	if err != nil {
		return nil, p.fail(ctx, req, StageTranscribed, err)
	}
	p.transition(ctx, req, StageTranscribed, nil, 0)

	summary, err := p.Summarizer.Summarize(ctx, transcript.Text)
	if err != nil {
		return nil, p.fail(ctx, req, StageSummarized, err)
	}
	p.transition(ctx, req, StageSummarized, nil, 0)

	upload, err := p.Store.Store(ctx, req.Audio, p.folderHint, probe.Format.ContentType())
	if err != nil {
		return nil, p.fail(ctx, req, StageStored, err)
	}
	p.transition(ctx, req, StageStored, nil, 0)

	note, err := p.persist(ctx, req, probe, transcript, summary, upload)
	if err != nil {
		return nil, p.fail(ctx, req, StagePersisted, err)
	}
	p.transition(ctx, req, StagePersisted, nil, note.ID)

	logger.Info("[Pipeline] 笔记创建完成",
		logger.String("runId", req.RunID),
		logger.Int64("userId", req.UserID),
		logger.Int64("noteId", note.ID),
		logger.Duration("elapsed", p.now().Sub(start)))
	return note, nil
}

func (p *Pipeline) persist(ctx context.Context, req Request, probe *audio.ProbeResult,
	transcript *transcribe.TranscriptionResult, summary *summarize.SummaryResult, upload *storage.UploadResult) (*model.Note, error) {

	var note *model.Note
	err := p.Notes.Transaction(ctx, func(tx repository.NoteStore) error {
		folderID, err := resolveFolder(ctx, tx, req)
		if err != nil {
			return err
		}

		n := &model.Note{
			UserID:          req.UserID,
			FolderID:        folderID,
			Title:           noteTitle(req),
			Content:         transcript.Text,
			Summary:         summary.Text,
			RecordingURL:    upload.URL,
			DurationSeconds: probe.DurationSeconds,
		}
		if err := tx.CreateNote(ctx, n); err != nil {
			return apperr.New(apperr.PersistenceFailed, "create note", err)
		}
		note = n
		return nil
	})
	if err != nil {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			// 提交失败等事务层错误
			err = apperr.New(apperr.PersistenceFailed, "commit note", err)
		}
		return nil, err
	}
	return note, nil
}

// resolveFolder 校验调用方指定的文件夹，未指定时使用默认文件夹
func resolveFolder(ctx context.Context, tx repository.NoteStore, req Request) (int64, error) {
	if req.FolderID == nil {
		folder, err := tx.GetOrCreateUncategorizedFolder(ctx, req.UserID)
		if err != nil {
			return 0, apperr.New(apperr.PersistenceFailed, "resolve uncategorized folder", err)
		}
		return folder.ID, nil
	}

	folder, err := tx.GetFolder(ctx, *req.FolderID)
	if err != nil {
		return 0, apperr.New(apperr.PersistenceFailed, "load folder", err)
	}
	// 其他用户的文件夹与不存在同样处理
	if folder == nil || folder.UserID != req.UserID {
		return 0, apperr.Errorf(apperr.FolderNotFound, "Folder not found")
	}
	return folder.ID, nil
}

func noteTitle(req Request) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		return t
	}
	if f := strings.TrimSpace(req.Filename); f != "" {
		return f
	}
	return DefaultTitle
}

// Accept 记录已排队的运行
func (p *Pipeline) Accept(ctx context.Context, req Request) {
	p.transition(ctx, req, StageReceived, nil, 0)
}

// Reject 记录未能排队的运行，状态直接进入 Failed
func (p *Pipeline) Reject(ctx context.Context, req Request, err error) {
	logger.Warn("[Pipeline] 任务未能排队",
		logger.String("runId", req.RunID),
		logger.Int64("userId", req.UserID),
		logger.ErrorField(err))
	p.transition(ctx, req, StageFailed, newStageError(StageReceived, apperr.New(apperr.Internal, "enqueue", err)), 0)
}

func (p *Pipeline) fail(ctx context.Context, req Request, stage Stage, err error) error {
	stageErr := newStageError(stage, err)
	logger.Error("[Pipeline] 处理失败",
		logger.String("runId", req.RunID),
		logger.Int64("userId", req.UserID),
		logger.String("stage", stage.String()),
		logger.String("kind", apperr.KindOf(stageErr).String()),
		logger.ErrorField(stageErr.Err))
	p.transition(ctx, req, StageFailed, stageErr, 0)
	return stageErr
}

func (p *Pipeline) transition(ctx context.Context, req Request, stage Stage, failure *StageError, noteID int64) {
	logger.Debug("[Pipeline] 状态迁移",
		logger.String("runId", req.RunID),
		logger.Int64("userId", req.UserID),
		logger.String("stage", stage.String()))

	if p.Recorder == nil || req.RunID == "" {
		return
	}
	status := &model.RunStatus{
		RunID:     req.RunID,
		UserID:    req.UserID,
		Stage:     stage.String(),
		NoteID:    noteID,
		UpdatedAt: p.now(),
	}
	if failure != nil {
		status.FailedStage = failure.Stage.String()
		status.Error = failure.Err.Error()
	}
	if err := p.Recorder.Record(ctx, status); err != nil {
		logger.Warn("[Pipeline] 记录状态失败",
			logger.String("runId", req.RunID),
			logger.String("stage", stage.String()),
			logger.ErrorField(err))
	}
}
