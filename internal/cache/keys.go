package cache

import (
	"fmt"
	"time"
)

const (
	UserTTL     = 900 * time.Second
	FileListTTL = 300 * time.Second
)

// UserKey 用户身份缓存键
func UserKey(id string) string {
	return "user:" + id
}

// ListKey 文件列表查询的全部参数
type ListKey struct {
	Owner  string
	Page   int
	Limit  int
	SortBy string
	Order  string
	Folder string
	Search string
}

// FileListKey 列表缓存键, 新增参数必须放在owner前缀之后
func FileListKey(k ListKey) string {
	folder := k.Folder
	if folder == "" {
		folder = "all"
	}
	search := k.Search
	if search == "" {
		search = "none"
	}
	return fmt.Sprintf("files:%s:page%d:limit%d:sort%s:%s:folder%s:search%s",
		k.Owner, k.Page, k.Limit, k.SortBy, k.Order, folder, search)
}

// OwnerFilesPattern 匹配某个用户所有列表缓存
func OwnerFilesPattern(owner string) string {
	return "files:" + owner + ":*"
}
