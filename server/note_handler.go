package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"VoxNote/core/pipeline"
	"VoxNote/logger"
	"VoxNote/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// runIDFor 优先使用调用方的 X-Request-ID，格式不合法时生成新的ID
func runIDFor(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); runIDPattern.MatchString(id) {
		return id
	}
	return uuid.NewString()
}

// CreateNoteHandler 上传录音并生成笔记
func (h *APIHandler) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("[Note] 读取上传文件失败", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	req := pipeline.Request{
		RunID:    runIDFor(r),
		UserID:   userID,
		Title:    r.FormValue("title"),
		Filename: header.Filename,
		Audio:    data,
	}
	w.Header().Set("X-Run-ID", req.RunID)

	if raw := strings.TrimSpace(r.FormValue("folder_id")); raw != "" {
		folderID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "folder_id must be an integer")
			return
		}
		// 提前校验，避免无效文件夹触发转写等远程调用
		folder, err := h.folderRepo.GetByID(r.Context(), folderID)
		if err != nil {
			logger.Error("[Note] 查询文件夹失败", logger.Int64("folderId", folderID), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if folder == nil || folder.UserID != userID {
			writeError(w, http.StatusNotFound, "Folder not found")
			return
		}
		req.FolderID = &folderID
	}

	logger.Info("[Note] 收到录音上传",
		logger.String("runId", req.RunID),
		logger.Int64("userId", userID),
		logger.String("filename", header.Filename),
		logger.Int("size", len(data)))

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if err := h.notes.Enqueue(r.Context(), req); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"run_id":     req.RunID,
			"status_url": "/note/runs/" + req.RunID,
		})
		return
	}

	note, err := h.notes.Submit(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// GetRunHandler 查询流水线运行状态，仅限发起者
func (h *APIHandler) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	runID := strings.TrimSpace(mux.Vars(r)["id"])

	status, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		logger.Error("[Note] 查询运行状态失败", logger.String("runId", runID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if status == nil || status.UserID != userID {
		writeError(w, http.StatusNotFound, "Run not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ListNotesHandler 分页列出当前用户的笔记
func (h *APIHandler) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 10)
	if perPage > 100 {
		perPage = 100
	}

	result, err := h.noteRepo.ListByUser(r.Context(), userID, page, perPage)
	if err != nil {
		logger.Error("[Note] 获取笔记列表失败", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ownedNote 加载笔记并校验归属，失败时已写入响应
func (h *APIHandler) ownedNote(w http.ResponseWriter, r *http.Request) (*model.Note, bool) {
	userID, _ := GetUserIDFromContext(r.Context())
	noteID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid note ID")
		return nil, false
	}

	note, err := h.noteRepo.GetByID(r.Context(), noteID)
	if err != nil {
		logger.Error("[Note] 查询笔记失败", logger.Int64("noteId", noteID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if note == nil || note.UserID != userID {
		writeError(w, http.StatusForbidden, "Not authorized to access this Note")
		return nil, false
	}
	return note, true
}

// GetNoteHandler 获取单条笔记
func (h *APIHandler) GetNoteHandler(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateNoteHandler 部分更新笔记
func (h *APIHandler) UpdateNoteHandler(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}

	var upd model.NoteUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// 移动到其他文件夹时目标必须属于当前用户
	if upd.FolderID != nil && *upd.FolderID != note.FolderID {
		folder, err := h.folderRepo.GetByID(r.Context(), *upd.FolderID)
		if err != nil {
			logger.Error("[Note] 查询文件夹失败", logger.Int64("folderId", *upd.FolderID), logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if folder == nil || folder.UserID != note.UserID {
			writeError(w, http.StatusNotFound, "Folder not found")
			return
		}
	}

	updated, err := h.noteRepo.Update(r.Context(), note.ID, upd)
	if err != nil {
		logger.Error("[Note] 更新笔记失败", logger.Int64("noteId", note.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteNoteHandler 删除笔记
func (h *APIHandler) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}
	if err := h.noteRepo.Delete(r.Context(), note.ID); err != nil {
		logger.Error("[Note] 删除笔记失败", logger.Int64("noteId", note.ID), logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "Failed to delete note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Note deleted successfully"})
}

// TogglePinHandler 切换置顶
func (h *APIHandler) TogglePinHandler(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}
	updated, err := h.noteRepo.TogglePin(r.Context(), note.ID)
	if err != nil {
		logger.Error("[Note] 切换置顶失败", logger.Int64("noteId", note.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ToggleArchiveHandler 切换归档
func (h *APIHandler) ToggleArchiveHandler(w http.ResponseWriter, r *http.Request) {
	note, ok := h.ownedNote(w, r)
	if !ok {
		return
	}
	updated, err := h.noteRepo.ToggleArchive(r.Context(), note.ID)
	if err != nil {
		logger.Error("[Note] 切换归档失败", logger.Int64("noteId", note.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
