// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/authgate/internal/auth"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/session"
)

const sessionCookieName = "session_token"

// TokenVerifierInterface はIDトークン検証のインターフェース。
type TokenVerifierInterface interface {
	Verify(ctx context.Context, assertion string) (*auth.VerifiedIdentity, error)
}

// AccountServiceInterface はアカウント解決・退会のインターフェース。
type AccountServiceInterface interface {
	Resolve(ctx context.Context, email, name string, provider model.Provider) (*model.User, error)
	Withdraw(ctx context.Context, email, sessionToken string) error
}

// OtpServiceInterface はワンタイムコードの発行・照合のインターフェース。
type OtpServiceInterface interface {
	Issue(ctx context.Context, email string) (string, error)
	Consume(ctx context.Context, email, suppliedCode string) (bool, error)
}

// SessionManagerInterface はセッション管理のインターフェース。
type SessionManagerInterface interface {
	Establish(ctx context.Context, email string) (*model.Session, error)
	Check(ctx context.Context, token string) (session.Status, error)
	Logout(ctx context.Context, token string) error
}

// AuthMetricsRecorder は認証フローのメトリクス記録に必要な操作。
type AuthMetricsRecorder interface {
	RecordLogin(provider string, result string)
	RecordOtpIssued()
	RecordOtpConsumed(result string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	verifier TokenVerifierInterface
	accounts AccountServiceInterface
	otp      OtpServiceInterface
	sessions SessionManagerInterface
	metrics  AuthMetricsRecorder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	verifier TokenVerifierInterface,
	accounts AccountServiceInterface,
	otp OtpServiceInterface,
	sessions SessionManagerInterface,
	metrics AuthMetricsRecorder,
	config AuthHandlerConfig,
) *AuthHandler {
	return &AuthHandler{
		verifier: verifier,
		accounts: accounts,
		otp:      otp,
		sessions: sessions,
		metrics:  metrics,
		config:   config,
	}
}

type loginRequest struct {
	IDToken string `json:"idToken"`
}

type otpAssignRequest struct {
	Email string `json:"email"`
}

type otpLoginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Otp   string `json:"otp"`
}

// Login はGoogle発行のIDトークンでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	// 有効なセッションが既にある場合は何も変更しない
	if status := h.currentStatus(r); status.Authenticated {
		writeJSON(w, http.StatusOK, map[string]string{
			"error": model.CodeAlreadyAuthenticated,
		})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeErrorCode(w, http.StatusBadRequest, model.CodeMissingToken, "IDトークンが指定されていません。")
		return
	}

	identity, err := h.verifier.Verify(r.Context(), req.IDToken)
	if err != nil {
		h.metrics.RecordLogin(string(model.ProviderGoogle), "failure")
		h.handleAuthError(w, err)
		return
	}

	user, err := h.accounts.Resolve(r.Context(), identity.Email, identity.Name, model.ProviderGoogle)
	if err != nil {
		h.metrics.RecordLogin(string(model.ProviderGoogle), "failure")
		h.handleAuthError(w, err)
		return
	}

	sess, err := h.sessions.Establish(r.Context(), user.Email)
	if err != nil {
		h.metrics.RecordLogin(string(model.ProviderGoogle), "failure")
		h.handleAuthError(w, err)
		return
	}

	h.setSessionCookie(w, sess.Token)
	h.metrics.RecordLogin(string(model.ProviderGoogle), "success")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ログインしました。",
		"name":    user.Name,
	})
}

// AssignOtp はワンタイムコードを発行しメールで送信する。
// POST /auth/otp/assign
func (h *AuthHandler) AssignOtp(w http.ResponseWriter, r *http.Request) {
	var req otpAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeErrorCode(w, http.StatusBadRequest, model.CodeUnknown, "メールアドレスが指定されていません。")
		return
	}

	if _, err := h.otp.Issue(r.Context(), req.Email); err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.metrics.RecordOtpIssued()
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ワンタイムコードを送信しました。",
	})
}

// OtpLogin はワンタイムコードを照合してログインする。
// POST /auth/otp/login
func (h *AuthHandler) OtpLogin(w http.ResponseWriter, r *http.Request) {
	var req otpLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Otp == "" {
		writeErrorCode(w, http.StatusUnauthorized, model.CodeInvalidOTP, "ワンタイムコードが無効です。")
		return
	}

	ok, err := h.otp.Consume(r.Context(), req.Email, req.Otp)
	if err != nil {
		h.metrics.RecordLogin(string(model.ProviderEmail), "failure")
		h.handleAuthError(w, err)
		return
	}
	if !ok {
		h.metrics.RecordOtpConsumed("mismatch")
		h.metrics.RecordLogin(string(model.ProviderEmail), "failure")
		h.handleAuthError(w, model.NewOtpMismatchError())
		return
	}
	h.metrics.RecordOtpConsumed("success")

	user, err := h.accounts.Resolve(r.Context(), req.Email, req.Name, model.ProviderEmail)
	if err != nil {
		h.metrics.RecordLogin(string(model.ProviderEmail), "failure")
		h.handleAuthError(w, err)
		return
	}

	sess, err := h.sessions.Establish(r.Context(), user.Email)
	if err != nil {
		h.metrics.RecordLogin(string(model.ProviderEmail), "failure")
		h.handleAuthError(w, err)
		return
	}

	h.setSessionCookie(w, sess.Token)
	h.metrics.RecordLogin(string(model.ProviderEmail), "success")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ログインしました。",
		"name":    user.Name,
	})
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), h.sessionToken(r)); err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ログアウトしました。",
	})
}

// Delete はユーザーを削除しセッションを破棄する。
// POST /auth/delete
func (h *AuthHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(r)

	status, err := h.sessions.Check(r.Context(), token)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}
	if !status.Authenticated {
		h.handleAuthError(w, model.NewNotAuthenticatedError())
		return
	}

	if err := h.accounts.Withdraw(r.Context(), status.Email, token); err != nil {
		h.handleAuthError(w, err)
		return
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "退会しました。",
	})
}

// CheckSession は現在のセッション状態を返す。
// GET /auth/check-session
func (h *AuthHandler) CheckSession(w http.ResponseWriter, r *http.Request) {
	status, err := h.sessions.Check(r.Context(), h.sessionToken(r))
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	resp := map[string]interface{}{
		"authenticated": status.Authenticated,
	}
	if status.Authenticated {
		resp["email"] = status.Email
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- ヘルパー関数 ---

// sessionToken はリクエストCookieからセッショントークンを取り出す。
// Cookieがない場合は空文字列を返す。
func (h *AuthHandler) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// currentStatus はリクエストのセッション状態を照会する。
// 照会エラーは未認証として扱う。
func (h *AuthHandler) currentStatus(r *http.Request) session.Status {
	token := h.sessionToken(r)
	if token == "" {
		return session.Status{}
	}
	status, err := h.sessions.Check(r.Context(), token)
	if err != nil {
		slog.Warn("session check failed", slog.String("error", err.Error()))
		return session.Status{}
	}
	return status
}

// setSessionCookie はセッショントークンをHTTP Only Cookieとして設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleAuthError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// Kindに対するswitchのみでステータスを決定し、内部原因は漏らさない。
func (h *AuthHandler) handleAuthError(w http.ResponseWriter, err error) {
	ae := model.AsAuthError(err)

	var status int
	switch ae.Kind {
	case model.KindInvalidToken:
		status = http.StatusBadRequest
	case model.KindCrossProviderConflict:
		status = http.StatusConflict
	case model.KindOtpMismatch:
		status = http.StatusUnauthorized
	case model.KindNotAuthenticated:
		status = http.StatusBadRequest
	case model.KindDeliveryError:
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		slog.Error("internal server error", slog.String("error", ae.Error()))
	}

	writeErrorCode(w, status, ae.Code, ae.Message)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeErrorCode はエラーコードとメッセージをJSONで書き込む。
func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error:   code,
		Message: message,
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
