package api

import (
	"errors"
	"net/http"

	"cloud-drive/internal/interfaces"
	"cloud-drive/internal/service"
	"cloud-drive/pkg/response"

	"github.com/gin-gonic/gin"
)

// FileHandler 处理文件相关的API请求
type FileHandler struct {
	fileService *service.FileService
	errorWriter
}

// NewFileHandler 创建新的文件处理器
func NewFileHandler(fileService *service.FileService, debug bool) *FileHandler {
	return &FileHandler{
		fileService: fileService,
		errorWriter: errorWriter{debug: debug},
	}
}

// UploadFile 上传文件, 可选folderId指定目标文件夹
func (h *FileHandler) UploadFile(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	maxSize := h.fileService.MaxUploadSize()
	header, err := formFile(c, "file", maxSize)
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		response.BadRequest(c, tooLargeMessage(maxSize))
		return
	case err != nil:
		response.BadRequest(c, service.ErrNoFile.Error())
		return
	}

	src, err := header.Open()
	if err != nil {
		h.write(c, err, "Upload failed")
		return
	}
	defer src.Close()

	file, err := h.fileService.Upload(c.Request.Context(), userID, c.PostForm("folderId"), interfaces.Object{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        src,
	})
	if err != nil {
		h.write(c, err, "Upload failed")
		return
	}

	response.Created(c, "File uploaded successfully", gin.H{"file": file})
}

// GetUserFiles 分页列表, 支持folder/search/sortBy/order
func (h *FileHandler) GetUserFiles(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	res, err := h.fileService.List(c.Request.Context(), userID, service.ListQuery{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 0),
		SortBy: c.Query("sortBy"),
		Order:  c.Query("order"),
		Folder: c.Query("folder"),
		Search: c.Query("search"),
	})
	if err != nil {
		h.write(c, err, "Failed to fetch files")
		return
	}

	response.OK(c, "", gin.H{
		"files":       res.Files,
		"count":       res.Count,
		"totalFiles":  res.TotalFiles,
		"currentPage": res.CurrentPage,
		"totalPages":  res.TotalPages,
	})
}

// SearchFiles 按名称搜索
func (h *FileHandler) SearchFiles(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	files, err := h.fileService.Search(c.Request.Context(), userID, c.Query("query"), c.Query("folder"))
	if err != nil {
		h.write(c, err, "Search failed")
		return
	}

	response.OK(c, "", gin.H{"files": files, "count": len(files)})
}

// PreviewFile 返回文件元数据
func (h *FileHandler) PreviewFile(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	file, err := h.fileService.Preview(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.write(c, err, "Failed to preview file")
		return
	}

	response.OK(c, "File preview fetched", gin.H{"file": file})
}

// DownloadFile 重定向到存储地址
func (h *FileHandler) DownloadFile(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	file, err := h.fileService.Download(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.write(c, err, "Failed to download file")
		return
	}

	c.Redirect(http.StatusFound, file.URL)
}

// DeleteFile 删除文件或文件夹
func (h *FileHandler) DeleteFile(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	res, err := h.fileService.Delete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.write(c, err, "Failed to delete")
		return
	}

	message := "File deleted successfully"
	if res.File.IsFolder() {
		message = "Folder deleted successfully"
	}
	response.OK(c, message, gin.H{"outcome": res.Outcome})
}

// PermanentDelete 从回收站彻底删除
func (h *FileHandler) PermanentDelete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	res, err := h.fileService.PermanentDelete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.write(c, err, "Failed to delete permanently")
		return
	}

	response.OK(c, "File permanently deleted", gin.H{"outcome": res.Outcome})
}

type createFolderRequest struct {
	FolderName string `json:"folderName"`
	ParentID   string `json:"parentId"`
}

// CreateFolder 新建文件夹
func (h *FileHandler) CreateFolder(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, service.ErrFolderNameRequired.Error())
		return
	}

	folder, err := h.fileService.CreateFolder(c.Request.Context(), userID, req.FolderName, req.ParentID)
	if err != nil {
		h.write(c, err, "Failed to create folder")
		return
	}

	response.Created(c, "Folder created successfully", gin.H{"folder": folder})
}

// ToggleStar 收藏/取消收藏
func (h *FileHandler) ToggleStar(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	starred, err := h.fileService.ToggleStar(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.write(c, err, "Failed to toggle star")
		return
	}

	message := "File unstarred"
	if starred {
		message = "File starred"
	}
	response.OK(c, message, gin.H{"isStarred": starred})
}

// MoveToTrash 放入回收站
func (h *FileHandler) MoveToTrash(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	file, err := h.fileService.MoveToTrash(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.write(c, err, "Failed to move to trash")
		return
	}

	response.OK(c, "File moved to trash", gin.H{"file": file})
}

// RestoreFromTrash 从回收站恢复
func (h *FileHandler) RestoreFromTrash(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	file, err := h.fileService.RestoreFromTrash(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.write(c, err, "Failed to restore file")
		return
	}

	response.OK(c, "File restored from trash", gin.H{"file": file})
}
