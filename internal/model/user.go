package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// 默认头像
const DefaultAvatar = "https://i.pinimg.com/1200x/4e/7c/53/4e7c53e7d136ab654ec3b004eeec3e72.jpg"

var ErrPasswordRequired = errors.New("password is required for local accounts")

// User 用户账号, 本地注册或Google登录创建
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string    `gorm:"type:varchar(50);not null" json:"name"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Password     string    `gorm:"type:varchar(255)" json:"-"`
	Avatar       string    `gorm:"type:varchar(1024)" json:"avatar"`
	Role         string    `gorm:"type:varchar(20);not null;default:user" json:"role"`
	AuthProvider string    `gorm:"type:varchar(20);not null;default:local" json:"authProvider"`
	GoogleID     *string   `gorm:"type:varchar(255);uniqueIndex" json:"googleId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail 邮箱统一小写并去掉首尾空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.AuthProvider == "" {
		u.AuthProvider = ProviderLocal
	}
	// 本地账号必须有密码
	if u.AuthProvider == ProviderLocal && u.Password == "" {
		return ErrPasswordRequired
	}
	return nil
}
