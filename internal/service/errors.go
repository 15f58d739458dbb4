package service

import "errors"

// 错误信息直接作为响应的message返回
var (
	ErrNotFound           = errors.New("File not found")
	ErrForbidden          = errors.New("Not authorized")
	ErrNotInTrash         = errors.New("File is not in trash")
	ErrFolderNameRequired = errors.New("Folder name required")
	ErrFolderExists       = errors.New("Folder already exists")
	ErrFolderNotFound     = errors.New("Folder not found")
	ErrSharedNotFound     = errors.New("Shared file not found")
	ErrNoFile             = errors.New("No file uploaded")
	ErrFileTooLarge       = errors.New("File too large")
	ErrStorage            = errors.New("Storage upload failed")
	ErrInvalidAvatar      = errors.New("Avatar must be an image")

	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrUserExists         = errors.New("User already exists")
	ErrUserNotFound       = errors.New("User not found")
	ErrNoRefreshToken     = errors.New("No refresh token found")
	ErrInvalidToken       = errors.New("Invalid refresh token")
)
