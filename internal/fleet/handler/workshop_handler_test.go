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

func setupWorkshopTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	h := NewWorkshopHandler(service.NewWorkshopService(repos.Workshop, repos.User))

	api := testutil.AuthGroup(router, "/api")
	api.GET("/workshops", h.List)
	api.GET("/workshops/:id", h.Get)
	api.POST("/workshops", middleware.RequireRoles(entity.RoleAdmin), h.Create)
	api.PUT("/workshops/:id", middleware.RequireRoles(entity.RoleAdmin, entity.RoleSupervisor), h.Update)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestWorkshopListReportsUtilization(t *testing.T) {
	env := setupWorkshopTest(t)
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 4)
	asset := testutil.SeedAsset(t, env.DB, "TRK-7001")
	// 利用率只数 pending/in_progress，已分派和已完成的都不计
	testutil.SeedJobCard(t, env.DB, asset.ID, workshop.ID, "JC20250100020")
	done := testutil.SeedJobCard(t, env.DB, asset.ID, workshop.ID, "JC20250100021")
	env.DB.Model(&entity.JobCard{}).Where("id = ?", done.ID).
		Update("status", entity.JobStatusCompleted)
	assigned := testutil.SeedJobCard(t, env.DB, asset.ID, workshop.ID, "JC20250100022")
	env.DB.Model(&entity.JobCard{}).Where("id = ?", assigned.ID).
		Update("status", entity.JobStatusAssigned)

	w := testutil.DoRequest(env.Router, "GET", "/api/workshops", nil, testutil.RoleToken(entity.RoleViewer))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 workshop, got %d", len(items))
	}
	first := items[0].(map[string]interface{})
	if first["active_jobs"] != 1.0 {
		t.Errorf("Expected 1 active job, got %v", first["active_jobs"])
	}
	if first["utilization"] != 25.0 {
		t.Errorf("Expected utilization 25, got %v", first["utilization"])
	}
}

func TestWorkshopZeroCapacityUtilization(t *testing.T) {
	env := setupWorkshopTest(t)
	testutil.SeedWorkshop(t, env.DB, "Empty Bay", 0)

	w := testutil.DoRequest(env.Router, "GET", "/api/workshops", nil, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	first := resp["items"].([]interface{})[0].(map[string]interface{})
	if first["utilization"] != 0.0 {
		t.Errorf("Expected utilization 0 for zero capacity, got %v", first["utilization"])
	}
}

func TestWorkshopDetailListsStaff(t *testing.T) {
	env := setupWorkshopTest(t)
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 5)
	tech := testutil.SeedUser(t, env.DB, "tech@test.com", "pw", entity.RoleTechnician)
	env.DB.Model(&entity.User{}).Where("id = ?", tech.ID).
		Update("workshop_id", workshop.ID)

	w := testutil.DoRequest(env.Router, "GET", "/api/workshops/"+workshop.ID, nil, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	staff := resp["staff"].([]interface{})
	if len(staff) != 1 {
		t.Fatalf("Expected 1 staff member, got %d", len(staff))
	}
	first := staff[0].(map[string]interface{})
	if first["email"] != "tech@test.com" {
		t.Errorf("Expected tech@test.com, got %v", first["email"])
	}
}

func TestWorkshopCreateAdminOnly(t *testing.T) {
	env := setupWorkshopTest(t)

	w := testutil.DoRequest(env.Router, "POST", "/api/workshops", map[string]interface{}{
		"name": "New Bay",
	}, testutil.RoleToken(entity.RoleSupervisor))
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for supervisor, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/workshops", map[string]interface{}{
		"name": "New Bay",
	}, testutil.AdminToken())
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for admin, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["capacity"] != 5.0 {
		t.Errorf("Expected default capacity 5, got %v", resp["capacity"])
	}
}

func TestWorkshopUpdateAllowsSupervisor(t *testing.T) {
	env := setupWorkshopTest(t)
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 5)

	w := testutil.DoRequest(env.Router, "PUT", "/api/workshops/"+workshop.ID, map[string]interface{}{
		"capacity": 8,
	}, testutil.RoleToken(entity.RoleSupervisor))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for supervisor, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["capacity"] != 8.0 {
		t.Errorf("Expected capacity 8, got %v", resp["capacity"])
	}
}
