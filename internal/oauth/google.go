// Package oauth Google登录的授权码流程
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var ErrInvalidState = errors.New("invalid oauth state")

// GoogleProfile userinfo接口返回的用户资料
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	// 测试时替换
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// GoogleProvider 负责跳转地址生成和回调处理
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
	states      *StateStore
}

func NewGoogleProvider(opts GoogleOptions, states *StateStore) *GoogleProvider {
	endpoint := opts.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = endpoints.Google
	}
	userInfoURL := opts.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       []string{"profile", "email"},
		},
		userInfoURL: userInfoURL,
		states:      states,
	}
}

// AuthCodeURL 生成跳转到Google的授权地址
func (p *GoogleProvider) AuthCodeURL() string {
	return p.cfg.AuthCodeURL(p.states.Issue(), oauth2.AccessTypeOnline)
}

// Exchange 校验state, 用授权码换取令牌并获取用户资料
func (p *GoogleProvider) Exchange(ctx context.Context, state, code string) (*GoogleProfile, error) {
	if !p.states.Consume(state) {
		return nil, ErrInvalidState
	}
	if code == "" {
		return nil, errors.New("missing authorization code")
	}

	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.cfg.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, body)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if profile.ID == "" || profile.Email == "" {
		return nil, errors.New("incomplete google profile")
	}
	return &profile, nil
}
