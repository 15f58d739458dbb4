package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// 文件夹也存为File, type固定为folder
	TypeFolder = "folder"
	// 顶层父目录
	RootFolder = "root"

	folderMarkerPrefix = "folder_"
)

// File 文件或文件夹的元数据, 不包含文件内容
type File struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	Type      string     `gorm:"type:varchar(255);not null;index" json:"type"`
	Size      int64      `gorm:"not null;default:0" json:"size"`
	URL       string     `gorm:"type:varchar(1024);not null" json:"url"`
	StorageID string     `gorm:"column:storage_id;type:varchar(512);not null;index" json:"fileId"`
	Owner     string     `gorm:"type:varchar(36);not null;index;index:idx_owner_parent,priority:1" json:"owner"`
	Parent    string     `gorm:"type:varchar(64);default:root;index:idx_owner_parent,priority:2" json:"folder"`
	ShareID   *string    `gorm:"type:varchar(64);uniqueIndex" json:"shareId,omitempty"`
	IsShared  bool       `gorm:"not null;default:false;index" json:"isShared"`
	IsStarred bool       `gorm:"not null;default:false;index" json:"isStarred"`
	IsTrashed bool       `gorm:"not null;default:false;index" json:"isTrashed"`
	TrashedAt *time.Time `json:"trashedAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsFolder 判断是否为文件夹
func (f *File) IsFolder() bool {
	return f.Type == TypeFolder
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Parent == "" {
		f.Parent = RootFolder
	}
	return nil
}

// NewFolderMarker 生成文件夹的占位存储ID, 不对应任何真实对象
func NewFolderMarker() string {
	return folderMarkerPrefix + randomHex(4)
}

// IsFolderMarker 判断存储ID是否为文件夹占位符
func IsFolderMarker(storageID string) bool {
	return strings.HasPrefix(storageID, folderMarkerPrefix)
}

// NewShareID 生成分享令牌
func NewShareID() string {
	return randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand 在受支持的平台上不会失败
		panic(err)
	}
	return hex.EncodeToString(b)
}
