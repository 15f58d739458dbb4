package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud-drive/internal/filter"
	"cloud-drive/internal/interfaces"
	"cloud-drive/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 允许排序的字段, 请求参数 -> 列名
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"size":      "size",
	"type":      "type",
}

const (
	DefaultSortBy = "createdAt"
	DefaultOrder  = "desc"
)

// NormalizeSort 不在白名单内的排序字段回退到默认值
func NormalizeSort(sortBy, order string) (string, string) {
	if _, ok := sortColumns[sortBy]; !ok {
		sortBy = DefaultSortBy
	}
	order = strings.ToLower(order)
	if order != "asc" {
		order = DefaultOrder
	}
	return sortBy, order
}

// FileRepository 文件和文件夹元数据
type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(conn *gorm.DB) *FileRepository {
	return &FileRepository{db: conn}
}

// 新建记录
func (r *FileRepository) Create(ctx context.Context, file *model.File) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (r *FileRepository) first(ctx context.Context, query interface{}, args ...interface{}) (*model.File, error) {
	var file model.File
	if err := r.db.WithContext(ctx).Where(query, args...).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 记录不存在
		}
		return nil, err
	}
	return &file, nil
}

// 通过ID查找
func (r *FileRepository) FindByID(ctx context.Context, id string) (*model.File, error) {
	return r.first(ctx, "id = ?", id)
}

// 查找同名记录, 用于文件夹重名检查
func (r *FileRepository) FindOne(ctx context.Context, owner, name, fileType, parent string) (*model.File, error) {
	return r.first(ctx, "owner = ? AND name = ? AND type = ? AND parent = ? AND is_trashed = ?",
		owner, name, fileType, parent, false)
}

// 通过分享令牌查找, 只返回仍处于分享状态的记录
func (r *FileRepository) FindByShareID(ctx context.Context, shareID string) (*model.File, error) {
	if shareID == "" {
		return nil, nil
	}
	return r.first(ctx, "share_id = ? AND is_shared = ?", shareID, true)
}

// 分页查询
func (r *FileRepository) Find(ctx context.Context, pred filter.Predicate, page interfaces.Page) ([]model.File, error) {
	sortBy, order := NormalizeSort(page.SortBy, page.Order)

	q := r.db.WithContext(ctx).Scopes(matching(pred)).
		Order(clause.OrderByColumn{
			Column: clause.Column{Name: sortColumns[sortBy]},
			Desc:   order == "desc",
		})
	if page.Offset > 0 {
		q = q.Offset(page.Offset)
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}

	files := []model.File{}
	if err := q.Find(&files).Error; err != nil {
		return nil, fmt.Errorf("find files: %w", err)
	}
	return files, nil
}

// 统计满足条件的记录数
func (r *FileRepository) Count(ctx context.Context, pred filter.Predicate) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.File{}).Scopes(matching(pred)).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return total, nil
}

// 文件夹的直接子项, 包括回收站中的
func (r *FileRepository) FindChildren(ctx context.Context, owner, parent string) ([]model.File, error) {
	var files []model.File
	err := r.db.WithContext(ctx).
		Where("owner = ? AND parent = ?", owner, parent).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("find children: %w", err)
	}
	return files, nil
}

// 按列名更新, owner和id不可修改
func (r *FileRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	delete(fields, "owner")
	delete(fields, "id")
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&model.File{}).Where("id = ?", id).Updates(fields).Error
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// 硬删除
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.File{}).Error; err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// 把filter.Predicate翻译成WHERE条件
func matching(pred filter.Predicate) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Where("owner = ?", pred.Owner)

		if pred.StarredOnly {
			q = q.Where("is_starred = ?", true)
		}

		switch pred.Trash {
		case filter.TrashOnly:
			q = q.Where("is_trashed = ?", true)
		default:
			q = q.Where("(is_trashed = ? OR is_trashed IS NULL)", false)
		}

		if pred.Parent != "" {
			q = q.Where("parent = ?", pred.Parent)
		}
		if pred.RootLevel {
			q = q.Where("(parent = ? OR parent IS NULL OR parent = '')", model.RootFolder)
		}

		if pred.NameContains != "" {
			q = q.Where("LOWER(name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(pred.NameContains))+"%")
		}
		return q
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// LIKE通配符按字面匹配
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
