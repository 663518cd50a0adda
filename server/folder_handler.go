package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"VoxNote/logger"
	"VoxNote/model"
	"VoxNote/repository"
)

// FolderRequest 创建或重命名文件夹的请求体
type FolderRequest struct {
	Name string `json:"name"`
}

func decodeFolderRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Folder name is required")
		return "", false
	}
	if len([]rune(name)) > 255 {
		writeError(w, http.StatusBadRequest, "Folder name is too long")
		return "", false
	}
	return name, true
}

// CreateFolderHandler 创建文件夹
func (h *APIHandler) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	name, ok := decodeFolderRequest(w, r)
	if !ok {
		return
	}

	folder := &model.Folder{UserID: userID, Name: name}
	if err := h.folderRepo.Create(r.Context(), folder); err != nil {
		if errors.Is(err, repository.ErrFolderExists) {
			writeError(w, http.StatusConflict, "Folder with this name already exists")
			return
		}
		logger.Error("[Folder] 创建文件夹失败", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	logger.Info("[Folder] 文件夹创建成功", logger.Int64("userId", userID), logger.Int64("folderId", folder.ID))
	writeJSON(w, http.StatusOK, folder)
}

// ListFoldersHandler 列出当前用户的文件夹
func (h *APIHandler) ListFoldersHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	folders, err := h.folderRepo.ListByUser(r.Context(), userID)
	if err != nil {
		logger.Error("[Folder] 获取文件夹列表失败", logger.Int64("userId", userID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if folders == nil {
		folders = []*model.Folder{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": folders})
}

// ownedFolder 加载文件夹并校验归属，失败时已写入响应
func (h *APIHandler) ownedFolder(w http.ResponseWriter, r *http.Request) (*model.Folder, bool) {
	userID, _ := GetUserIDFromContext(r.Context())
	folderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid folder ID")
		return nil, false
	}

	folder, err := h.folderRepo.GetByID(r.Context(), folderID)
	if err != nil {
		logger.Error("[Folder] 查询文件夹失败", logger.Int64("folderId", folderID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	if folder == nil || folder.UserID != userID {
		writeError(w, http.StatusForbidden, "Not authorized to access this folder")
		return nil, false
	}
	return folder, true
}

// GetFolderHandler 获取文件夹
func (h *APIHandler) GetFolderHandler(w http.ResponseWriter, r *http.Request) {
	folder, ok := h.ownedFolder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// RenameFolderHandler 重命名文件夹
func (h *APIHandler) RenameFolderHandler(w http.ResponseWriter, r *http.Request) {
	folder, ok := h.ownedFolder(w, r)
	if !ok {
		return
	}
	name, ok := decodeFolderRequest(w, r)
	if !ok {
		return
	}

	if err := h.folderRepo.Rename(r.Context(), folder, name); err != nil {
		if errors.Is(err, repository.ErrFolderExists) {
			writeError(w, http.StatusConflict, "Folder with this name already exists")
			return
		}
		logger.Error("[Folder] 重命名文件夹失败", logger.Int64("folderId", folder.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// DeleteFolderHandler 删除文件夹及其中的笔记
func (h *APIHandler) DeleteFolderHandler(w http.ResponseWriter, r *http.Request) {
	folder, ok := h.ownedFolder(w, r)
	if !ok {
		return
	}
	if err := h.folderRepo.Delete(r.Context(), folder.ID); err != nil {
		logger.Error("[Folder] 删除文件夹失败", logger.Int64("folderId", folder.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	logger.Info("[Folder] 文件夹已删除", logger.Int64("folderId", folder.ID), logger.Int64("userId", folder.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Folder deleted successfully"})
}

// ListFolderNotesHandler 列出文件夹内的笔记
func (h *APIHandler) ListFolderNotesHandler(w http.ResponseWriter, r *http.Request) {
	folder, ok := h.ownedFolder(w, r)
	if !ok {
		return
	}
	skip := queryInt(r, "skip", 0)
	if skip < 0 {
		skip = 0
	}
	limit := queryInt(r, "limit", 100)

	notes, err := h.noteRepo.ListByFolder(r.Context(), folder.ID, skip, limit)
	if err != nil {
		logger.Error("[Folder] 获取文件夹笔记失败", logger.Int64("folderId", folder.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, notes)
}
