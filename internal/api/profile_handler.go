package api

import (
	"errors"
	"net/http"

	"cloud-drive/internal/interfaces"
	"cloud-drive/internal/service"
	"cloud-drive/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	authService   *service.AuthService
	maxAvatarSize int64
	errorWriter
}

func NewProfileHandler(authService *service.AuthService, maxAvatarSize int64, debug bool) *ProfileHandler {
	return &ProfileHandler{
		authService:   authService,
		maxAvatarSize: maxAvatarSize,
		errorWriter:   errorWriter{debug: debug},
	}
}

// Me 当前用户资料
func (h *ProfileHandler) Me(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.write(c, err, "Failed to get profile")
		return
	}

	response.OK(c, "", gin.H{"user": user})
}

// Update multipart表单: name, 可选avatar文件
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var avatar *interfaces.Object
	header, err := formFile(c, "avatar", h.maxAvatarSize)
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		response.BadRequest(c, tooLargeMessage(h.maxAvatarSize))
		return
	case err != nil && !errors.Is(err, http.ErrMissingFile):
		h.write(c, err, "Failed to update profile")
		return
	case err == nil:
		src, err := header.Open()
		if err != nil {
			h.write(c, err, "Failed to update profile")
			return
		}
		defer src.Close()
		avatar = &interfaces.Object{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        src,
		}
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, c.PostForm("name"), avatar)
	if err != nil {
		h.write(c, err, "Failed to update profile")
		return
	}

	response.OK(c, "Profile updated", gin.H{"user": user})
}
