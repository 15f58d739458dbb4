package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"cloud-drive/internal/cache"
	"cloud-drive/internal/filter"
	"cloud-drive/internal/interfaces"
	"cloud-drive/internal/model"
	"cloud-drive/internal/repository"
	"cloud-drive/internal/storage"
	"cloud-drive/pkg/logger"

	"go.uber.org/zap"
)

// FileOptions 文件服务的可调参数
type FileOptions struct {
	// 分享链接前缀
	FrontendURL string
	// 0 表示不限制
	MaxUploadSize int64
	// 删除文件夹时向下清理的层数, 1 只清理直接子项
	FolderDeleteDepth int
	DefaultPageSize   int
	MaxPageSize       int
}

func (o *FileOptions) setDefaults() {
	if o.FolderDeleteDepth < 1 {
		o.FolderDeleteDepth = 1
	}
	if o.DefaultPageSize < 1 {
		o.DefaultPageSize = 10
	}
	if o.MaxPageSize < 1 {
		o.MaxPageSize = 100
	}
	o.FrontendURL = strings.TrimRight(o.FrontendURL, "/")
}

// FileService 组合元数据存储, 对象存储和缓存, 实现文件相关操作
type FileService struct {
	files   interfaces.FileStore
	storage interfaces.ObjectStorage
	cache   interfaces.Cache
	opts    FileOptions
}

// NewFileService 创建新的文件服务
func NewFileService(files interfaces.FileStore, objects interfaces.ObjectStorage, c interfaces.Cache, opts FileOptions) *FileService {
	opts.setDefaults()
	return &FileService{
		files:   files,
		storage: objects,
		cache:   c,
		opts:    opts,
	}
}

// MaxUploadSize 上传大小上限
func (s *FileService) MaxUploadSize() int64 {
	return s.opts.MaxUploadSize
}

// 取出记录并校验归属: 不存在ErrNotFound, 不是本人ErrForbidden
func (s *FileService) owned(ctx context.Context, owner, id string) (*model.File, error) {
	file, err := s.files.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrNotFound
	}
	if file.Owner != owner {
		return nil, ErrForbidden
	}
	return file, nil
}

// 清除该用户所有列表缓存, 失败只记日志
func (s *FileService) invalidate(ctx context.Context, owner, reason string) {
	if s.cache.DeletePattern(ctx, cache.OwnerFilesPattern(owner)) {
		logger.L.Debug("File list cache invalidated",
			zap.String("owner", owner),
			zap.String("reason", reason))
	}
}

// 校验目标文件夹存在且属于该用户, 返回写入parent字段的值
func (s *FileService) resolveFolder(ctx context.Context, owner, folderID string) (string, error) {
	ref := filter.ParseFolderRef(folderID)
	if !ref.IsFolder() {
		return filter.ResolveParent(ref), nil
	}
	folder, err := s.files.FindByID(ctx, ref.ID)
	if err != nil {
		return "", err
	}
	if folder == nil || folder.Owner != owner || !folder.IsFolder() {
		return "", ErrFolderNotFound
	}
	return filter.ResolveParent(ref), nil
}

// Upload 先写对象存储, 成功后再创建记录
func (s *FileService) Upload(ctx context.Context, owner, folderID string, obj interfaces.Object) (*model.File, error) {
	if obj.Body == nil {
		return nil, ErrNoFile
	}
	if s.opts.MaxUploadSize > 0 && obj.Size > s.opts.MaxUploadSize {
		return nil, ErrFileTooLarge
	}

	parent, err := s.resolveFolder(ctx, owner, folderID)
	if err != nil {
		return nil, err
	}

	obj.Owner = owner
	obj.ContentType = storage.DetectContentType(obj.Name, obj.ContentType)

	stored, err := s.storage.Upload(ctx, obj)
	if err != nil {
		logger.L.Error("Failed to store file",
			zap.String("owner", owner),
			zap.String("filename", obj.Name),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	size := stored.Size
	if size <= 0 {
		size = obj.Size
	}
	file := &model.File{
		Name:      obj.Name,
		Type:      obj.ContentType,
		Size:      size,
		URL:       stored.URL,
		StorageID: stored.ID,
		Owner:     owner,
		Parent:    parent,
	}
	if err := s.files.Create(ctx, file); err != nil {
		// 记录写入失败时删除已上传的对象
		if delErr := s.storage.Delete(ctx, stored.ID); delErr != nil {
			logger.L.Warn("Failed to remove orphaned object",
				zap.String("storageID", stored.ID),
				zap.Error(delErr))
		}
		return nil, err
	}

	s.invalidate(ctx, owner, "upload")
	return file, nil
}

// ListQuery 列表查询参数, 零值使用默认值
type ListQuery struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
	Folder string
	Search string
}

// FileList 列表结果, 整体写入缓存
type FileList struct {
	Files       []model.File `json:"files"`
	Count       int          `json:"count"`
	TotalFiles  int64        `json:"totalFiles"`
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
}

func (s *FileService) normalize(q ListQuery) ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = s.opts.DefaultPageSize
	}
	if q.Limit > s.opts.MaxPageSize {
		q.Limit = s.opts.MaxPageSize
	}
	q.SortBy, q.Order = repository.NormalizeSort(q.SortBy, q.Order)
	q.Folder = strings.TrimSpace(q.Folder)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// List 分页列表, 命中缓存时不访问数据库
func (s *FileService) List(ctx context.Context, owner string, q ListQuery) (*FileList, error) {
	q = s.normalize(q)

	key := cache.FileListKey(cache.ListKey{
		Owner:  owner,
		Page:   q.Page,
		Limit:  q.Limit,
		SortBy: q.SortBy,
		Order:  q.Order,
		Folder: q.Folder,
		Search: q.Search,
	})

	var cached FileList
	if s.cache.Get(ctx, key, &cached) {
		logger.L.Debug("Files loaded from cache", zap.String("owner", owner))
		return &cached, nil
	}

	pred := filter.Build(owner, filter.OptionsFor(filter.ParseFolderRef(q.Folder), q.Search))

	files, err := s.files.Find(ctx, pred, interfaces.Page{
		SortBy: q.SortBy,
		Order:  q.Order,
		Offset: (q.Page - 1) * q.Limit,
		Limit:  q.Limit,
	})
	if err != nil {
		return nil, err
	}
	total, err := s.files.Count(ctx, pred)
	if err != nil {
		return nil, err
	}

	result := &FileList{
		Files:       files,
		Count:       len(files),
		TotalFiles:  total,
		CurrentPage: q.Page,
		TotalPages:  int(math.Ceil(float64(total) / float64(q.Limit))),
	}

	s.cache.Set(ctx, key, result, cache.FileListTTL)
	return result, nil
}

// Search 按名称搜索, 不走缓存, 按创建时间倒序
func (s *FileService) Search(ctx context.Context, owner, query, folder string) ([]model.File, error) {
	pred := filter.Build(owner, filter.Options{
		Folder: filter.ParseFolderRef(folder),
		Search: query,
	})
	return s.files.Find(ctx, pred, interfaces.Page{
		SortBy: repository.DefaultSortBy,
		Order:  repository.DefaultOrder,
	})
}

// Preview 文件元数据
func (s *FileService) Preview(ctx context.Context, owner, id string) (*model.File, error) {
	return s.owned(ctx, owner, id)
}

// Download 返回记录, handler重定向到存储地址
func (s *FileService) Download(ctx context.Context, owner, id string) (*model.File, error) {
	return s.owned(ctx, owner, id)
}

// DeleteOutcome 删除的实际结果, 对象存储失败不会中断删除
type DeleteOutcome struct {
	RecordDeleted bool `json:"recordDeleted"`
	// 目标本身的对象是否已删除, 文件夹没有对象, 恒为true
	BlobDeleted     bool     `json:"blobDeleted"`
	ChildrenDeleted int      `json:"childrenDeleted"`
	OrphanedBlobs   []string `json:"orphanedBlobs,omitempty"`
}

// DeleteResult 被删除的记录及删除结果
type DeleteResult struct {
	File    *model.File
	Outcome DeleteOutcome
}

// Delete 删除文件或文件夹, 文件夹按FolderDeleteDepth清理子项
func (s *FileService) Delete(ctx context.Context, owner, id string) (*DeleteResult, error) {
	return s.remove(ctx, owner, id, "delete")
}

// PermanentDelete 从回收站彻底删除, 语义与Delete相同
func (s *FileService) PermanentDelete(ctx context.Context, owner, id string) (*DeleteResult, error) {
	return s.remove(ctx, owner, id, "permanent delete")
}

func (s *FileService) remove(ctx context.Context, owner, id, reason string) (*DeleteResult, error) {
	file, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	outcome := DeleteOutcome{BlobDeleted: true}
	if file.IsFolder() {
		if err := s.deleteContents(ctx, owner, file.ID, s.opts.FolderDeleteDepth, &outcome); err != nil {
			// 已删除的子项无法回滚, 缓存仍需失效
			s.invalidate(ctx, owner, reason)
			return nil, err
		}
	} else if !s.deleteBlob(ctx, file) {
		outcome.BlobDeleted = false
		outcome.OrphanedBlobs = append(outcome.OrphanedBlobs, file.StorageID)
	}

	if err := s.files.Delete(ctx, file.ID); err != nil {
		s.invalidate(ctx, owner, reason)
		return nil, err
	}
	outcome.RecordDeleted = true

	logger.L.Info("File deleted",
		zap.String("owner", owner),
		zap.String("id", file.ID),
		zap.String("reason", reason),
		zap.Int("children", outcome.ChildrenDeleted),
		zap.Int("orphanedBlobs", len(outcome.OrphanedBlobs)))

	s.invalidate(ctx, owner, reason)
	return &DeleteResult{File: file, Outcome: outcome}, nil
}

// 删除文件夹的子项, depth为剩余层数
// 超出层数的子文件夹只删除记录本身, 其内容保留
func (s *FileService) deleteContents(ctx context.Context, owner, folderID string, depth int, outcome *DeleteOutcome) error {
	children, err := s.files.FindChildren(ctx, owner, folderID)
	if err != nil {
		return err
	}

	for i := range children {
		child := &children[i]
		if child.IsFolder() {
			if depth > 1 {
				if err := s.deleteContents(ctx, owner, child.ID, depth-1, outcome); err != nil {
					return err
				}
			}
		} else if !s.deleteBlob(ctx, child) {
			outcome.OrphanedBlobs = append(outcome.OrphanedBlobs, child.StorageID)
		}

		if err := s.files.Delete(ctx, child.ID); err != nil {
			return err
		}
		outcome.ChildrenDeleted++
	}
	return nil
}

// 删除对象, 文件夹占位ID不会发给对象存储; 失败只记日志
func (s *FileService) deleteBlob(ctx context.Context, file *model.File) bool {
	if file.StorageID == "" || model.IsFolderMarker(file.StorageID) {
		return true
	}
	if err := s.storage.Delete(ctx, file.StorageID); err != nil {
		logger.L.Warn("Object deletion failed",
			zap.String("name", file.Name),
			zap.String("storageID", file.StorageID),
			zap.Error(err))
		return false
	}
	return true
}

// CreateFolder 在parentID下新建文件夹, parentID为空时建在根目录
func (s *FileService) CreateFolder(ctx context.Context, owner, name, parentID string) (*model.File, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrFolderNameRequired
	}

	parent, err := s.resolveFolder(ctx, owner, parentID)
	if err != nil {
		return nil, err
	}

	exists, err := s.files.FindOne(ctx, owner, name, model.TypeFolder, parent)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return nil, ErrFolderExists
	}

	folder := &model.File{
		Name:      name,
		Type:      model.TypeFolder,
		Size:      0,
		URL:       "#",
		StorageID: model.NewFolderMarker(),
		Owner:     owner,
		Parent:    parent,
	}
	if err := s.files.Create(ctx, folder); err != nil {
		return nil, err
	}

	s.invalidate(ctx, owner, "create folder")
	return folder, nil
}

// ShareLink 分享结果
type ShareLink struct {
	ShareID string
	Link    string
}

// Share 生成新的分享令牌, 旧令牌随之失效
func (s *FileService) Share(ctx context.Context, owner, id string) (*ShareLink, error) {
	file, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	shareID := model.NewShareID()
	if err := s.files.Update(ctx, file.ID, map[string]interface{}{
		"share_id":  shareID,
		"is_shared": true,
	}); err != nil {
		return nil, err
	}

	s.invalidate(ctx, owner, "share")
	return &ShareLink{
		ShareID: shareID,
		Link:    s.opts.FrontendURL + "/shared/" + shareID,
	}, nil
}

// Unshare 取消分享, 令牌被清除后不能再访问
func (s *FileService) Unshare(ctx context.Context, owner, id string) (*model.File, error) {
	file, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if err := s.files.Update(ctx, file.ID, map[string]interface{}{
		"share_id":  nil,
		"is_shared": false,
	}); err != nil {
		return nil, err
	}
	file.ShareID = nil
	file.IsShared = false

	s.invalidate(ctx, owner, "unshare")
	return file, nil
}

// GetShared 无需登录, 只返回处于分享状态的记录
func (s *FileService) GetShared(ctx context.Context, shareID string) (*model.File, error) {
	file, err := s.files.FindByShareID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if file == nil || !file.IsShared {
		return nil, ErrSharedNotFound
	}
	return file, nil
}

// ToggleStar 切换收藏状态, 返回新状态
func (s *FileService) ToggleStar(ctx context.Context, owner, id string) (bool, error) {
	file, err := s.owned(ctx, owner, id)
	if err != nil {
		return false, err
	}

	starred := !file.IsStarred
	if err := s.files.Update(ctx, file.ID, map[string]interface{}{"is_starred": starred}); err != nil {
		return false, err
	}

	s.invalidate(ctx, owner, "toggle star")
	return starred, nil
}

// MoveToTrash 放入回收站
func (s *FileService) MoveToTrash(ctx context.Context, owner, id string) (*model.File, error) {
	file, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.files.Update(ctx, file.ID, map[string]interface{}{
		"is_trashed": true,
		"trashed_at": now,
	}); err != nil {
		return nil, err
	}
	file.IsTrashed = true
	file.TrashedAt = &now

	s.invalidate(ctx, owner, "trash")
	return file, nil
}

// RestoreFromTrash 从回收站恢复, 不在回收站时返回ErrNotInTrash且不做修改
func (s *FileService) RestoreFromTrash(ctx context.Context, owner, id string) (*model.File, error) {
	file, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !file.IsTrashed {
		return nil, ErrNotInTrash
	}

	if err := s.files.Update(ctx, file.ID, map[string]interface{}{
		"is_trashed": false,
		"trashed_at": nil,
	}); err != nil {
		return nil, err
	}
	file.IsTrashed = false
	file.TrashedAt = nil

	s.invalidate(ctx, owner, "restore")
	return file, nil
}
