package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/bitfantasy/fleetops/internal/config"
	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/bitfantasy/fleetops/internal/fleet/service"
	"github.com/bitfantasy/fleetops/internal/fleet/testutil"
)

func setupAuthTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	cfg := &config.Config{}
	cfg.JWT.Secret = testutil.JWTSecret
	cfg.JWT.AccessTokenExpire = 2 * time.Hour
	cfg.JWT.RefreshTokenExpire = 168 * time.Hour
	cfg.JWT.Issuer = "fleetops"

	repos := repository.NewRepositories(db)
	h := NewAuthHandler(service.NewAuthService(repos.User, repos.AuditLog, nil, cfg))

	router.POST("/api/auth/login", h.Login)
	router.POST("/api/auth/refresh", h.Refresh)
	authed := testutil.AuthGroup(router, "/api/auth")
	authed.GET("/me", h.Me)
	authed.POST("/change-password", h.ChangePassword)
	authed.POST("/logout", h.Logout)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestLoginSuccessIssuesTokenPair(t *testing.T) {
	env := setupAuthTest(t)
	testutil.SeedUser(t, env.DB, "manager@test.com", "secret123", entity.RoleFleetManager)

	w := testutil.DoRequest(env.Router, "POST", "/api/auth/login", map[string]interface{}{
		"email":    "manager@test.com",
		"password": "secret123",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	if resp["access_token"] == nil || resp["refresh_token"] == nil {
		t.Fatal("Expected token pair in response")
	}
	user := resp["user"].(map[string]interface{})
	if user["password_hash"] != nil {
		t.Error("Password hash must never be serialized")
	}

	// 成功登录落一条审计
	var count int64
	env.DB.Model(&entity.AuditLog{}).
		Where("action = ?", entity.AuditActionLogin).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 login audit row, got %d", count)
	}
}

func TestLoginFailureIsAudited(t *testing.T) {
	env := setupAuthTest(t)
	testutil.SeedUser(t, env.DB, "manager@test.com", "secret123", entity.RoleFleetManager)

	w := testutil.DoRequest(env.Router, "POST", "/api/auth/login", map[string]interface{}{
		"email":    "manager@test.com",
		"password": "wrong",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	env.DB.Model(&entity.AuditLog{}).
		Where("action = ?", entity.AuditActionLoginFailed).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 failed-login audit row, got %d", count)
	}
}

func TestLoginUnknownEmailSameStatus(t *testing.T) {
	env := setupAuthTest(t)

	w := testutil.DoRequest(env.Router, "POST", "/api/auth/login", map[string]interface{}{
		"email":    "ghost@test.com",
		"password": "whatever",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for unknown email, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	env := setupAuthTest(t)
	user := testutil.SeedUser(t, env.DB, "gone@test.com", "secret123", entity.RoleViewer)
	env.DB.Model(&entity.User{}).Where("id = ?", user.ID).Update("is_active", false)

	w := testutil.DoRequest(env.Router, "POST", "/api/auth/login", map[string]interface{}{
		"email":    "gone@test.com",
		"password": "secret123",
	}, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for inactive account, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["error"] != "Account is inactive" {
		t.Errorf("Expected inactive account message, got %v", resp["error"])
	}
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	env := setupAuthTest(t)
	testutil.SeedUser(t, env.DB, "manager@test.com", "secret123", entity.RoleFleetManager)

	w := testutil.DoRequest(env.Router, "POST", "/api/auth/login", map[string]interface{}{
		"email":    "manager@test.com",
		"password": "secret123",
	}, "")
	resp := testutil.ParseResponse(w)
	refreshToken := resp["refresh_token"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/auth/refresh", map[string]interface{}{
		"refresh_token": refreshToken,
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if testutil.ParseResponse(w)["access_token"] == nil {
		t.Error("Expected new access token")
	}

	// access token 不能当 refresh token 用
	accessToken := resp["access_token"].(string)
	w = testutil.DoRequest(env.Router, "POST", "/api/auth/refresh", map[string]interface{}{
		"refresh_token": accessToken,
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for access token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	env := setupAuthTest(t)
	user := testutil.SeedUser(t, env.DB, "tech@test.com", "oldpass123", entity.RoleTechnician)
	token := testutil.GenerateTestToken(user.ID, "Tech", user.Email, user.Role)

	w := testutil.DoRequest(env.Router, "POST", "/api/auth/change-password", map[string]interface{}{
		"current_password": "wrongpass",
		"new_password":     "newpass12345",
	}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for wrong current password, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/auth/change-password", map[string]interface{}{
		"current_password": "oldpass123",
		"new_password":     "newpass12345",
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// 新密码可登录
	w = testutil.DoRequest(env.Router, "POST", "/api/auth/login", map[string]interface{}{
		"email":    "tech@test.com",
		"password": "newpass12345",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected login with new password, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	env.DB.Model(&entity.AuditLog{}).
		Where("action = ?", entity.AuditActionPasswordChanged).Count(&count)
	if count != 1 {
		t.Errorf("Expected password-change audit row, got %d", count)
	}
}

func TestMeRequiresToken(t *testing.T) {
	env := setupAuthTest(t)
	user := testutil.SeedUser(t, env.DB, "viewer@test.com", "secret123", entity.RoleViewer)

	w := testutil.DoRequest(env.Router, "GET", "/api/auth/me", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}

	token := testutil.GenerateTestToken(user.ID, "Viewer", user.Email, user.Role)
	w = testutil.DoRequest(env.Router, "GET", "/api/auth/me", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["email"] != "viewer@test.com" {
		t.Errorf("Expected current user email, got %v", resp["email"])
	}
}
