package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"VoxNote/config"
	"VoxNote/core/apperr"
	"VoxNote/core/auth"
	"VoxNote/core/pipeline"
	"VoxNote/logger"
	"VoxNote/model"
	"VoxNote/repository"

	"github.com/gorilla/mux"
)

// NoteSubmitter 将上传请求交给流水线执行
type NoteSubmitter interface {
	Submit(ctx context.Context, req pipeline.Request) (*model.Note, error)
	Enqueue(ctx context.Context, req pipeline.Request) error
}

// RunStatusReader 查询流水线运行状态
type RunStatusReader interface {
	Get(ctx context.Context, runID string) (*model.RunStatus, error)
}

// APIHandler 处理所有API请求
type APIHandler struct {
	userRepo   repository.UserRepository
	folderRepo repository.FolderRepository
	noteRepo   repository.NoteRepository
	tokens     *auth.TokenManager
	notes      NoteSubmitter
	runs       RunStatusReader
	cfg        *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(
	userRepo repository.UserRepository,
	folderRepo repository.FolderRepository,
	noteRepo repository.NoteRepository,
	tokens *auth.TokenManager,
	notes NoteSubmitter,
	runs RunStatusReader,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		userRepo:   userRepo,
		folderRepo: folderRepo,
		noteRepo:   noteRepo,
		tokens:     tokens,
		notes:      notes,
		runs:       runs,
		cfg:        cfg,
	}
}

// errorEnvelope 错误响应体
type errorEnvelope struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("[API] 写入响应失败", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorEnvelope{StatusCode: status, Detail: detail})
}

// writeAppError 按错误类别输出状态码。5xx 不向调用方暴露内部原因。
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrDispatcherStopped):
		writeError(w, http.StatusServiceUnavailable, "Server is busy, please retry later")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "Request abandoned before the note was ready")
		return
	}

	status := apperr.HTTPStatus(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		writeError(w, status, publicDetail(err))
		return
	}
	writeError(w, status, causeMessage(err))
}

// publicDetail 服务端失败时返回的固定描述
func publicDetail(err error) string {
	switch apperr.KindOf(err) {
	case apperr.TranscriptionFailed:
		return "Failed to transcribe audio"
	case apperr.SummarizationFailed:
		return "Failed to summarize text"
	case apperr.StorageFailed:
		return "Failed to upload recording"
	case apperr.PersistenceFailed:
		return "Failed to save note"
	default:
		return "Internal server error"
	}
}

// causeMessage 去掉阶段前缀，只保留分类错误本身的描述
func causeMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return err.Error()
}

// pathID 解析路由中的数字ID
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryInt 读取查询参数，缺省或无效时返回 fallback
func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
