package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud-drive/internal/cache"
	"cloud-drive/internal/interfaces"
	"cloud-drive/internal/model"
	"cloud-drive/internal/oauth"
	"cloud-drive/internal/storage"
	"cloud-drive/pkg/logger"
	"cloud-drive/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// 处理认证相关业务逻辑
type AuthService struct {
	users   interfaces.UserStore
	tokens  *utils.TokenManager
	cache   interfaces.Cache
	storage interfaces.ObjectStorage
}

// 创建一个新的认证服务实例
func NewAuthService(users interfaces.UserStore, tokens *utils.TokenManager, c interfaces.Cache, storage interfaces.ObjectStorage) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		cache:   c,
		storage: storage,
	}
}

// 用户注册请求
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// 用户登陆请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// 登录/注册结果, 刷新令牌由handler写入cookie
type AuthResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// 注册新用户
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	// 检查邮箱是否已存在
	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	// 加密密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		Password:     string(hashedPassword),
		Avatar:       model.DefaultAvatar,
		AuthProvider: model.ProviderLocal,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// 并发注册同一邮箱
		if again, findErr := s.users.FindByEmail(ctx, req.Email); findErr == nil && again != nil {
			return nil, ErrUserExists
		}
		return nil, err
	}

	logger.L.Info("User registered", zap.String("userID", user.ID))
	return s.issue(user)
}

// 用户登陆
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	// 只通过Google登录的账号没有密码
	if user == nil || user.Password == "" {
		return nil, ErrInvalidCredentials
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Refresh 用刷新令牌换取新的访问令牌
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	return s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
}

// LoginWithGoogle 依次按Google ID查找, 按邮箱关联已有账号, 最后新建账号
func (s *AuthService) LoginWithGoogle(ctx context.Context, profile *oauth.GoogleProfile) (*AuthResult, error) {
	if profile == nil || profile.ID == "" || profile.Email == "" {
		return nil, errors.New("incomplete google profile")
	}

	user, err := s.users.FindByGoogleID(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return s.issue(user)
	}

	user, err = s.users.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		// 关联到已有账号, 有密码的账号保持local
		fields := map[string]interface{}{"google_id": profile.ID}
		if user.Password == "" {
			fields["auth_provider"] = model.ProviderGoogle
			user.AuthProvider = model.ProviderGoogle
		}
		avatar := firstNonEmpty(profile.Picture, user.Avatar, model.DefaultAvatar)
		fields["avatar"] = avatar
		if err := s.users.Update(ctx, user.ID, fields); err != nil {
			return nil, err
		}
		gid := profile.ID
		user.GoogleID = &gid
		user.Avatar = avatar
		s.forget(ctx, user.ID)

		logger.L.Info("Google account linked", zap.String("userID", user.ID))
		return s.issue(user)
	}

	gid := profile.ID
	user = &model.User{
		Name:         firstNonEmpty(strings.TrimSpace(profile.Name), strings.Split(profile.Email, "@")[0]),
		Email:        profile.Email,
		GoogleID:     &gid,
		AuthProvider: model.ProviderGoogle,
		Avatar:       firstNonEmpty(profile.Picture, model.DefaultAvatar),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.L.Info("User created from google profile", zap.String("userID", user.ID))
	return s.issue(user)
}

// ResolveUser 按ID获取用户, 优先读缓存; 用户不存在时返回nil, nil
func (s *AuthService) ResolveUser(ctx context.Context, id string) (*model.User, error) {
	key := cache.UserKey(id)

	var cached model.User
	if s.cache.Get(ctx, key, &cached) && cached.ID == id {
		return &cached, nil
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	s.cache.Set(ctx, key, user, cache.UserTTL)
	return user, nil
}

// GetProfile 当前用户资料
func (s *AuthService) GetProfile(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile 修改名字和头像, avatar为nil时不修改头像
func (s *AuthService) UpdateProfile(ctx context.Context, id, name string, avatar *interfaces.Object) (*model.User, error) {
	fields := map[string]interface{}{}
	if name = strings.TrimSpace(name); name != "" {
		fields["name"] = name
	}

	if avatar != nil {
		contentType := storage.DetectContentType(avatar.Name, avatar.ContentType)
		if !strings.HasPrefix(contentType, "image/") {
			return nil, ErrInvalidAvatar
		}
		avatar.ContentType = contentType
		avatar.Owner = id
		avatar.Name = "avatar-" + id + extOf(avatar.Name)
		stored, err := s.storage.Upload(ctx, *avatar)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		fields["avatar"] = stored.URL
	}

	if len(fields) > 0 {
		if err := s.users.Update(ctx, id, fields); err != nil {
			return nil, err
		}
		s.forget(ctx, id)
	}
	return s.GetProfile(ctx, id)
}

// 用户资料变更后清除身份缓存
func (s *AuthService) forget(ctx context.Context, id string) {
	s.cache.Delete(ctx, cache.UserKey(id))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 && !strings.Contains(name[i:], "/") {
		return name[i:]
	}
	return ""
}
