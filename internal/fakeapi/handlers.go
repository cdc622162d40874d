package fakeapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/goAuthClient/middleware"
)

type userJSON struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name,omitempty"`
	CompanyID        string `json:"companyId,omitempty"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
}

func (u *user) json() *userJSON {
	return &userJSON{
		ID:               u.id,
		Email:            u.Email,
		Name:             u.Name,
		CompanyID:        u.CompanyID,
		TwoFactorEnabled: u.twoFactor,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)
	var in struct {
		Email             string `json:"email"`
		Password          string `json:"password"`
		DeviceFingerprint string `json:"deviceFingerprint"`
		DeviceName        string `json:"deviceName"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[in.Email]
	if !ok || u.Password != in.Password {
		if ok {
			u.history = append(u.history, historyEntry{ID: newID(), At: time.Now(), DeviceName: in.DeviceName, IP: r.RemoteAddr})
		}
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		return
	}

	if u.RequireDeviceVerification {
		if _, trusted := u.devices[in.DeviceFingerprint]; !trusted {
			token := newID()
			s.pendingDevice[token] = pendingDevice{email: u.Email, fingerprint: in.DeviceFingerprint, name: in.DeviceName}
			s.lastDevToken[u.Email] = token
			if u.DeviceChallengeAsError {
				writeError(w, http.StatusForbidden, "DEVICE_VERIFICATION_REQUIRED", "verify this device from the link we emailed you")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"requires2FA":                false,
				"requiresDeviceVerification": true,
				"message":                    "verify this device from the link we emailed you",
			})
			return
		}
	}

	if u.twoFactor {
		s.pending2FA[u.Email] = in.DeviceFingerprint
		writeJSON(w, http.StatusOK, map[string]any{"requires2FA": true})
		return
	}

	s.completeLocked(w, r, u, in.DeviceFingerprint, in.DeviceName)
}

// completeLocked finishes a successful authentication. Caller holds s.mu.
func (s *Server) completeLocked(w http.ResponseWriter, r *http.Request, u *user, fingerprint, name string) {
	access, refresh, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	now := time.Now()
	if fingerprint != "" {
		d, ok := u.devices[fingerprint]
		if !ok {
			d = &device{ID: newID(), Name: name, Fingerprint: fingerprint, CreatedAt: now}
			u.devices[fingerprint] = d
		}
		d.LastUsedAt = now
	}
	u.history = append(u.history, historyEntry{ID: newID(), At: now, IP: r.RemoteAddr, DeviceName: name, Success: true})

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  access,
		"refreshToken": refresh,
		"requires2FA":  false,
		"user":         u.json(),
	})
}

func (s *Server) handleVerify2FA(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email             string `json:"email"`
		Code              string `json:"code"`
		DeviceFingerprint string `json:"deviceFingerprint"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[in.Email]
	fp, pending := s.pending2FA[in.Email]
	if !ok || !pending || fp != in.DeviceFingerprint {
		writeError(w, http.StatusUnauthorized, "INVALID_CODE", "no pending verification")
		return
	}
	if in.Code != u.TwoFactorCode {
		writeError(w, http.StatusUnauthorized, "INVALID_CODE", "invalid verification code")
		return
	}
	delete(s.pending2FA, in.Email)
	s.completeLocked(w, r, u, in.DeviceFingerprint, "")
}

func (s *Server) handleVerifyDevice(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pendingDevice[in.Token]
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "invalid or expired token")
		return
	}
	delete(s.pendingDevice, in.Token)
	if u, ok := s.users[p.email]; ok {
		now := time.Now()
		u.devices[p.fingerprint] = &device{ID: newID(), Name: p.name, Fingerprint: p.fingerprint, CreatedAt: now, LastUsedAt: now}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &in) {
		return
	}

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	if s.rejectRefresh.Load() {
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "refresh token revoked")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.refresh[in.RefreshToken]
	if !ok {
		s.logger.Warn().Msg("refresh with unknown or reused token")
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid refresh token")
		return
	}
	delete(s.refresh, in.RefreshToken)

	u := s.users[email]
	access, refresh, err := s.issueLocked(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  access,
		"refreshToken": refresh,
		"user":         u.json(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)
	if s.failLogout.Load() {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "logout unavailable")
		return
	}
	token, _ := middleware.TokenFromContext(r.Context())
	claims, _ := middleware.ClaimsFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, token)
	for rt, email := range s.refresh {
		if email == claims.Email {
			delete(s.refresh, rt)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentUser(r *http.Request) (*user, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, false
	}
	u, ok := s.users[claims.Email]
	return u, ok
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u.json())
}

func (s *Server) handleLoginHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}
	out := make([]historyEntry, 0, limit)
	for i := len(u.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, u.history[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTrustedDevices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}
	out := make([]*device, 0, len(u.devices))
	for _, d := range u.devices {
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}
	for fp, d := range u.devices {
		if d.ID == id {
			delete(u.devices, fp)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "device not found")
}

func (s *Server) handleEnable2FA(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}
	if u.TwoFactorCode == "" {
		u.TwoFactorCode = "123456"
	}
	u.twoFactor = true
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":    true,
		"secret":     "JBSWY3DPEHPK3PXP",
		"otpauthUrl": "otpauth://totp/fakeapi:" + u.Email + "?secret=JBSWY3DPEHPK3PXP",
	})
}

func (s *Server) handleDisable2FA(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.currentUser(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
		return
	}
	if !u.twoFactor || in.Code != u.TwoFactorCode {
		writeError(w, http.StatusUnauthorized, "INVALID_CODE", "invalid verification code")
		return
	}
	u.twoFactor = false
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	if _, ok := s.users[in.Email]; ok {
		token := newID()
		s.resets[token] = in.Email
		s.lastReset[in.Email] = token
	}
	s.mu.Unlock()

	// Same answer for unknown emails.
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.resets[in.Token]
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "invalid or expired token")
		return
	}
	delete(s.resets, in.Token)
	s.users[email].Password = in.NewPassword
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	s.resendCalls.Add(1)
	var in struct {
		Email string `json:"email"`
		Type  string `json:"type"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Type != "device" && in.Type != "2fa" {
		writeError(w, http.StatusBadRequest, "INVALID_TYPE", "unknown verification type")
		return
	}

	if in.Type == "device" {
		s.mu.Lock()
		for token, p := range s.pendingDevice {
			if p.email == in.Email {
				delete(s.pendingDevice, token)
				fresh := newID()
				s.pendingDevice[fresh] = p
				s.lastDevToken[in.Email] = fresh
				break
			}
		}
		s.mu.Unlock()
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	var in map[string]any
	if !decode(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"message": message, "code": code})
}
