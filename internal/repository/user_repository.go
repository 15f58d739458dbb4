package repository

import (
	"context"
	"errors"
	"fmt"

	"cloud-drive/internal/model"

	"gorm.io/gorm"
)

// UserRepository 处理用户数据持久化
type UserRepository struct {
	db *gorm.DB
}

// 创建一个新的用户存储库实例
func NewUserRepository(conn *gorm.DB) *UserRepository {
	return &UserRepository{db: conn}
}

// 新建用户
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) first(ctx context.Context, query interface{}, args ...interface{}) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return &user, nil
}

// 通过ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

// 通过邮箱查找用户, 不区分大小写
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", model.NormalizeEmail(email))
}

// 通过Google账号ID查找用户
func (r *UserRepository) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	if googleID == "" {
		return nil, nil
	}
	return r.first(ctx, "google_id = ?", googleID)
}

// 按列名更新, id和email不可修改
func (r *UserRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	delete(fields, "id")
	delete(fields, "email")
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
