package pipeline

import (
	"errors"
	"fmt"

	"VoxNote/core/apperr"
)

// Stage 流水线状态
type Stage int

const (
	StageReceived Stage = iota
	StageProbed
	StageTranscribed
	StageSummarized
	StageStored
	StagePersisted
	StageFailed
)

var stageNames = [...]string{
	StageReceived:    "Received",
	StageProbed:      "Probed",
	StageTranscribed: "Transcribed",
	StageSummarized:  "Summarized",
	StageStored:      "Stored",
	StagePersisted:   "Persisted",
	StageFailed:      "Failed",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// defaultKind 未分类错误在各阶段的归类
func (s Stage) defaultKind() apperr.Kind {
	switch s {
	case StageProbed:
		return apperr.InvalidAudioFormat
	case StageTranscribed:
		return apperr.TranscriptionFailed
	case StageSummarized:
		return apperr.SummarizationFailed
	case StageStored:
		return apperr.StorageFailed
	case StagePersisted:
		return apperr.PersistenceFailed
	default:
		return apperr.Internal
	}
}

// StageError 终止状态 Failed(stage, cause)。Stage 为未能到达的目标状态，
// 例如探测失败时为 StageProbed。
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func newStageError(stage Stage, err error) *StageError {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		err = apperr.New(stage.defaultKind(), "", err)
	}
	return &StageError{Stage: stage, Err: err}
}
