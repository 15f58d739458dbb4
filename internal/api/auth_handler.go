package api

import (
	"net/http"
	"net/url"

	"cloud-drive/internal/oauth"
	"cloud-drive/internal/service"
	"cloud-drive/pkg/logger"
	"cloud-drive/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const refreshCookieName = "refreshToken"

// 处理认证相关的HTTP请求
type AuthHandler struct {
	authService *service.AuthService
	// 未配置Google登录时为nil
	google       *oauth.GoogleProvider
	frontendURL  string
	cookieMaxAge int
	secureCookie bool
	errorWriter
}

type AuthHandlerOptions struct {
	FrontendURL  string
	CookieMaxAge int
	Production   bool
}

// 创建一个新的认证处理器实例
func NewAuthHandler(authService *service.AuthService, google *oauth.GoogleProvider, opts AuthHandlerOptions) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		google:       google,
		frontendURL:  opts.FrontendURL,
		cookieMaxAge: opts.CookieMaxAge,
		secureCookie: opts.Production,
		errorWriter:  errorWriter{debug: !opts.Production},
	}
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, h.cookieMaxAge, "/", "", h.secureCookie, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", h.secureCookie, true)
}

// 处理用户注册请求
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		h.write(c, err, "Registration failed")
		return
	}

	h.setRefreshCookie(c, res.RefreshToken)
	response.Created(c, "User registered successfully", gin.H{
		"user":        res.User,
		"accessToken": res.AccessToken,
	})
}

// 处理用户登陆请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		h.write(c, err, "Login failed")
		return
	}

	h.setRefreshCookie(c, res.RefreshToken)
	response.OK(c, "Login successful", gin.H{
		"user":        res.User,
		"accessToken": res.AccessToken,
	})
}

// 清除刷新令牌cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearRefreshCookie(c)
	response.OK(c, "Logged out successfully", nil)
}

// 用cookie中的刷新令牌换取新的访问令牌
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(refreshCookieName)

	accessToken, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		h.write(c, err, "Token refresh failed")
		return
	}

	response.OK(c, "Token refreshed", gin.H{"accessToken": accessToken})
}

// 跳转到Google授权页
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		response.NotFound(c, "Google login is not configured")
		return
	}
	c.Redirect(http.StatusFound, h.google.AuthCodeURL())
}

// Google回调, 结果通过重定向交给前端
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		response.NotFound(c, "Google login is not configured")
		return
	}

	failure := h.frontendURL + "/login?" + url.Values{"error": {"Authentication failed"}}.Encode()

	profile, err := h.google.Exchange(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		logger.L.Warn("Google OAuth failed", zap.Error(err))
		c.Redirect(http.StatusFound, failure)
		return
	}

	res, err := h.authService.LoginWithGoogle(c.Request.Context(), profile)
	if err != nil {
		logger.L.Error("Google OAuth login failed", zap.Error(err))
		c.Redirect(http.StatusFound, failure)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken)
	c.Redirect(http.StatusFound, h.frontendURL+"/oauth/callback?"+url.Values{"token": {res.AccessToken}}.Encode())
}
