package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud-drive/internal/cache"
	"cloud-drive/internal/model"
	"cloud-drive/internal/repository"
	"cloud-drive/internal/service"
	"cloud-drive/internal/storage"
	"cloud-drive/pkg/db"
	"cloud-drive/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testFrontend = "http://front.test"

type testServer struct {
	router *gin.Engine
	conn   *gorm.DB
	cache  *cache.Cache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open("sqlite", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })

	uploads := t.TempDir()
	objects, err := storage.NewLocalStorage(uploads, "http://localhost:5000/uploads")
	require.NoError(t, err)

	c := cache.New(cache.NewMemoryStore(time.Minute))
	tokens := utils.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)

	files := service.NewFileService(repository.NewFileRepository(conn), objects, c, service.FileOptions{
		FrontendURL:   testFrontend,
		MaxUploadSize: 64 * 1024,
	})
	auth := service.NewAuthService(repository.NewUserRepository(conn), tokens, c, objects)

	return &testServer{
		router: NewRouter(RouterDeps{
			DB:          conn,
			Cache:       c,
			Tokens:      tokens,
			AuthService: auth,
			FileService: files,
			FrontendURL: testFrontend,
			UploadsDir:  uploads,
		}),
		conn:  conn,
		cache: c,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, token, name string, content []byte, folderID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	if folderID != "" {
		require.NoError(t, mw.WriteField("folderId", folderID))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// register 注册并返回访问令牌
func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Test User", "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	token, _ := body["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func fileID(t *testing.T, body map[string]any, key string) string {
	t.Helper()
	obj, ok := body[key].(map[string]any)
	require.True(t, ok, "missing %s in %v", key, body)
	id, _ := obj["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func listNames(t *testing.T, body map[string]any) []string {
	t.Helper()
	items, _ := body["files"].([]any)
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.(map[string]any)["name"].(string))
	}
	return names
}

func refreshCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	return nil
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Alice", "email": "Alice@Example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "User registered successfully", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotContains(t, user, "password")

	cookie := refreshCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	// 重复注册
	w = s.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Alice", "email": "alice@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.ErrInvalidCredentials.Error(), decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Login successful", decode(t, w)["message"])
	cookie = refreshCookie(w)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil)
	req.AddCookie(cookie)
	rw := httptest.NewRecorder()
	s.router.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)
	token := decode(t, rw)["accessToken"].(string)

	w = s.do(t, http.MethodGet, "/api/profile/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice", decode(t, w)["user"].(map[string]any)["name"])

	// 没有cookie
	w = s.do(t, http.MethodPost, "/api/auth/refresh-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 伪造的刷新令牌
	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "garbage"})
	rw = httptest.NewRecorder()
	s.router.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusForbidden, rw.Code)

	w = s.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookie = refreshCookie(w)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		method  string
		path    string
		token   string
		message string
	}{
		{"no token", http.MethodGet, "/api/files", "", "Not authorized, no token"},
		{"bad token", http.MethodGet, "/api/files", "not-a-jwt", "Not authorized, token failed"},
		{"profile", http.MethodGet, "/api/profile/me", "", "Not authorized, no token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["message"])
		})
	}
}

func TestUploadListAndDownload(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "u1@example.com")

	w := s.upload(t, token, "report.pdf", bytes.Repeat([]byte("x"), 2048), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "File uploaded successfully", body["message"])
	id := fileID(t, body, "file")

	w = s.do(t, http.MethodGet, "/api/files?folder=root", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	files := body["files"].([]any)
	require.Len(t, files, 1)
	f := files[0].(map[string]any)
	assert.Equal(t, "report.pdf", f["name"])
	assert.EqualValues(t, 2048, f["size"])
	assert.Contains(t, f["type"], "pdf")
	assert.EqualValues(t, 1, body["totalFiles"])
	assert.EqualValues(t, 1, body["currentPage"])
	assert.EqualValues(t, 1, body["totalPages"])

	w = s.do(t, http.MethodGet, "/api/files/preview/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "File preview fetched", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/files/download/"+id, token, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "http://localhost:5000/uploads/"))

	// 其他用户不能访问
	other := s.register(t, "u2@example.com")
	w = s.do(t, http.MethodGet, "/api/files/preview/"+id, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/files/preview/missing-id", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "File not found", decode(t, w)["message"])
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "u1@example.com")

	// 没有文件字段
	w := s.do(t, http.MethodPost, "/api/files/upload", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file uploaded", decode(t, w)["message"])

	tooLarge := []struct {
		name string
		size int
	}{
		{"over limit", 65 * 1024},
		{"over request body limit", 2 << 20},
	}
	for _, tt := range tooLarge {
		t.Run(tt.name, func(t *testing.T) {
			w := s.upload(t, token, "big.bin", make([]byte, tt.size), "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "File too large, max size is 64 KB", decode(t, w)["message"])
		})
	}

	w = s.upload(t, token, "a.txt", []byte("hi"), "no-such-folder")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFoldersStarTrashAndRestore(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "u1@example.com")

	w := s.do(t, http.MethodPost, "/api/files/folder", token, gin.H{"folderName": "Docs"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Folder created successfully", decode(t, w)["message"])
	folderID := fileID(t, decode(t, w), "folder")

	w = s.do(t, http.MethodPost, "/api/files/folder", token, gin.H{"folderName": "Docs"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/files/folder", token, gin.H{"folderName": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload(t, token, "notes.txt", []byte("hello"), folderID)
	require.Equal(t, http.StatusCreated, w.Code)
	id := fileID(t, decode(t, w), "file")

	w = s.do(t, http.MethodGet, "/api/files?folder="+folderID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"notes.txt"}, listNames(t, decode(t, w)))

	// 收藏
	w = s.do(t, http.MethodPatch, "/api/files/star/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "File starred", body["message"])
	assert.Equal(t, true, body["isStarred"])

	w = s.do(t, http.MethodGet, "/api/files?folder=starred", token, nil)
	assert.Equal(t, []string{"notes.txt"}, listNames(t, decode(t, w)))

	w = s.do(t, http.MethodPatch, "/api/files/star/"+id, token, nil)
	assert.Equal(t, "File unstarred", decode(t, w)["message"])

	w = s.do(t, http.MethodPatch, "/api/files/trash/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "File moved to trash", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/files?folder="+folderID, token, nil)
	assert.Empty(t, listNames(t, decode(t, w)))
	w = s.do(t, http.MethodGet, "/api/files?folder=trash", token, nil)
	assert.Equal(t, []string{"notes.txt"}, listNames(t, decode(t, w)))

	w = s.do(t, http.MethodPatch, "/api/files/restore/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "File restored from trash", decode(t, w)["message"])

	w = s.do(t, http.MethodPatch, "/api/files/trash/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, "/api/files/permanent/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "File permanently deleted", decode(t, w)["message"])

	w = s.do(t, http.MethodDelete, "/api/files/"+folderID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Folder deleted successfully", decode(t, w)["message"])
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "u1@example.com")

	for _, name := range []string{"Invoice-2024.pdf", "invoice-2023.pdf", "photo.png"} {
		require.Equal(t, http.StatusCreated, s.upload(t, token, name, []byte("data"), "").Code)
	}

	w := s.do(t, http.MethodGet, "/api/files/search?query=INVOICE", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.ElementsMatch(t, []string{"Invoice-2024.pdf", "invoice-2023.pdf"}, listNames(t, body))
	assert.EqualValues(t, 2, body["count"])
}

func TestShareAndRevoke(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "u1@example.com")

	w := s.upload(t, token, "slides.pdf", []byte("pdf"), "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := fileID(t, decode(t, w), "file")

	w = s.do(t, http.MethodPost, "/api/files/share/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "File shared successfully", body["message"])
	shareID := body["shareId"].(string)
	assert.Equal(t, testFrontend+"/shared/"+shareID, body["shareLink"])

	// 公开访问无需令牌
	w = s.do(t, http.MethodGet, "/api/files/shared/"+shareID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "slides.pdf", decode(t, w)["file"].(map[string]any)["name"])

	w = s.do(t, http.MethodDelete, "/api/files/share/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/files/shared/"+shareID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "u1@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Renamed"))
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPatch, "/api/profile/update", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	user := decode(t, w)["user"].(map[string]any)
	assert.Equal(t, "Renamed", user["name"])
	assert.NotEqual(t, model.DefaultAvatar, user["avatar"])

	w = s.do(t, http.MethodGet, "/api/profile/me", token, nil)
	assert.Equal(t, "Renamed", decode(t, w)["user"].(map[string]any)["name"])
}

func TestAdminCache(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "admin@example.com")

	w := s.do(t, http.MethodGet, "/api/admin/cache?key=x", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, s.conn.Model(&model.User{}).
		Where("email = ?", "admin@example.com").
		Update("role", model.RoleAdmin).Error)
	// 角色缓存在用户键中
	s.cache.ClearAll(t.Context())

	require.True(t, s.cache.Set(t.Context(), "probe", "1", time.Minute))
	w = s.do(t, http.MethodGet, "/api/admin/cache?key=probe", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["exists"])
	assert.Greater(t, body["ttl"].(float64), float64(0))

	w = s.do(t, http.MethodDelete, "/api/admin/cache", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.cache.Exists(t.Context(), "probe"))
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "ok", body["cache"])
}

func TestGoogleLoginNotConfigured(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/auth/google", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPermanentDeleteOutsideTrash(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "u1@example.com")

	w := s.upload(t, token, "draft.txt", []byte("draft"), "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := fileID(t, decode(t, w), "file")

	w = s.do(t, http.MethodDelete, "/api/files/permanent/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "File permanently deleted", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/files/preview/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (s *testServer) updateAvatar(t *testing.T, token, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPatch, "/api/profile/update", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestUpdateProfileRejectsBadAvatar(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "u1@example.com")

	tests := []struct {
		name    string
		file    string
		size    int
		message string
	}{
		{"too large", "me.png", 65 * 1024, "File too large, max size is 64 KB"},
		{"too large body", "me.png", 2 << 20, "File too large, max size is 64 KB"},
		{"not an image", "me.txt", 10, "Avatar must be an image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.updateAvatar(t, token, tt.file, make([]byte, tt.size))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decode(t, w)["message"])
		})
	}

	w := s.do(t, http.MethodGet, "/api/profile/me", token, nil)
	assert.Equal(t, model.DefaultAvatar, decode(t, w)["user"].(map[string]any)["avatar"])
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 bytes"},
		{64 * 1024, "64 KB"},
		{50 << 20, "50 MB"},
		{(1 << 20) + 512*1024, "1536 KB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.in))
	}
}
