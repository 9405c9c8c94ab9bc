package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/bitfantasy/fleetops/internal/fleet/service"
	"github.com/bitfantasy/fleetops/internal/fleet/testutil"
	"github.com/bitfantasy/fleetops/internal/middleware"
)

func setupAssetTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	h := NewAssetHandler(service.NewAssetService(repos.Asset, repos.Workshop, repos.AuditLog, db))

	api := testutil.AuthGroup(router, "/api")
	api.GET("/assets", h.List)
	api.GET("/assets/stats", h.Stats)
	api.GET("/assets/new", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.NewForm)
	api.GET("/assets/:id", h.Get)
	api.POST("/assets", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Create)
	api.PUT("/assets/:id", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Update)
	api.DELETE("/assets/:id", middleware.RequireRoles(entity.RoleAdmin), h.Delete)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestAssetNewFormMetadata(t *testing.T) {
	env := setupAssetTest(t)
	testutil.SeedWorkshop(t, env.DB, "Central", 5)
	asset := testutil.SeedAsset(t, env.DB, "TRK-9100")
	env.DB.Model(&entity.Asset{}).Where("id = ?", asset.ID).
		Update("department", "Logistics")

	// 表单元数据仅限开单角色
	w := testutil.DoRequest(env.Router, "GET", "/api/assets/new", nil, testutil.RoleToken(entity.RoleViewer))
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for viewer, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/assets/new", nil, testutil.RoleToken(entity.RoleFleetManager))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	options := resp["options"].(map[string]interface{})
	if len(options["asset_types"].([]interface{})) != 3 {
		t.Errorf("Expected 3 asset types, got %v", options["asset_types"])
	}
	if len(options["workshops"].([]interface{})) != 1 {
		t.Errorf("Expected 1 workshop option, got %v", options["workshops"])
	}
	departments := options["departments"].([]interface{})
	if len(departments) != 1 || departments[0] != "Logistics" {
		t.Errorf("Expected [Logistics] department suggestions, got %v", departments)
	}
	defaults := resp["defaults"].(map[string]interface{})
	if defaults["status"] != "active" {
		t.Errorf("Expected default status active, got %v", defaults["status"])
	}
}

func TestAssetCreateAndAudit(t *testing.T) {
	env := setupAssetTest(t)
	token := testutil.AdminToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/assets", map[string]interface{}{
		"registration": "TRK-9001",
		"asset_type":   "vehicle",
		"make":         "Volvo",
		"model":        "FH16",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["status"] != "active" {
		t.Errorf("Expected default status active, got %v", resp["status"])
	}

	// 创建动作同事务写审计
	var count int64
	env.DB.Model(&entity.AuditLog{}).
		Where("entity_type = ? AND action = ?", "asset", entity.AuditActionCreate).
		Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 audit row, got %d", count)
	}
}

func TestAssetDuplicateRegistration(t *testing.T) {
	env := setupAssetTest(t)
	token := testutil.AdminToken()
	testutil.SeedAsset(t, env.DB, "TRK-9002")

	w := testutil.DoRequest(env.Router, "POST", "/api/assets", map[string]interface{}{
		"registration": "TRK-9002",
		"asset_type":   "vehicle",
		"make":         "MAN",
		"model":        "TGX",
	}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAssetDeleteIsSoft(t *testing.T) {
	env := setupAssetTest(t)
	asset := testutil.SeedAsset(t, env.DB, "TRK-9003")

	w := testutil.DoRequest(env.Router, "DELETE", "/api/assets/"+asset.ID, nil, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got entity.Asset
	if err := env.DB.First(&got, "id = ?", asset.ID).Error; err != nil {
		t.Fatalf("Expected row to survive delete: %v", err)
	}
	if got.Status != entity.AssetStatusDisposed {
		t.Errorf("Expected status disposed, got %s", got.Status)
	}
}

func TestAssetDeleteForbiddenForFleetManager(t *testing.T) {
	env := setupAssetTest(t)
	asset := testutil.SeedAsset(t, env.DB, "TRK-9004")

	w := testutil.DoRequest(env.Router, "DELETE", "/api/assets/"+asset.ID, nil, testutil.RoleToken(entity.RoleFleetManager))
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAssetStatsExcludeDisposed(t *testing.T) {
	env := setupAssetTest(t)
	token := testutil.AdminToken()
	testutil.SeedAsset(t, env.DB, "TRK-9005")
	disposed := testutil.SeedAsset(t, env.DB, "TRK-9006")
	env.DB.Model(&entity.Asset{}).Where("id = ?", disposed.ID).
		Update("status", entity.AssetStatusDisposed)

	w := testutil.DoRequest(env.Router, "GET", "/api/assets/stats", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["total"] != 1.0 {
		t.Errorf("Expected total 1 excluding disposed, got %v", resp["total"])
	}
}

func TestAssetSearchFilter(t *testing.T) {
	env := setupAssetTest(t)
	token := testutil.AdminToken()
	testutil.SeedAsset(t, env.DB, "TRK-A100")
	testutil.SeedAsset(t, env.DB, "EXC-B200")

	w := testutil.DoRequest(env.Router, "GET", "/api/assets?search=exc", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(items))
	}
}

func TestAssetUpdateWritesDiffAudit(t *testing.T) {
	env := setupAssetTest(t)
	asset := testutil.SeedAsset(t, env.DB, "TRK-9007")

	w := testutil.DoRequest(env.Router, "PUT", "/api/assets/"+asset.ID, map[string]interface{}{
		"status":          "in_service",
		"current_mileage": 130000,
	}, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var log entity.AuditLog
	if err := env.DB.Where("entity_type = ? AND entity_id = ? AND action = ?",
		"asset", asset.ID, entity.AuditActionUpdate).First(&log).Error; err != nil {
		t.Fatalf("Expected audit row: %v", err)
	}
	if log.Details == "" || log.Details == "{}" {
		t.Errorf("Expected diff details, got %q", log.Details)
	}
}
