package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/bitfantasy/fleetops/internal/fleet/service"
	"github.com/bitfantasy/fleetops/internal/fleet/testutil"
	"github.com/bitfantasy/fleetops/internal/middleware"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupMaintenanceTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	h := NewMaintenanceHandler(service.NewMaintenanceService(repos.Schedule, repos.Asset))

	api := testutil.AuthGroup(router, "/api")
	api.GET("/maintenance", h.List)
	api.GET("/maintenance/due-soon", h.DueSoon)
	api.GET("/maintenance/:id", h.Get)
	api.POST("/maintenance", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Create)
	api.PUT("/maintenance/:id", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Update)
	api.DELETE("/maintenance/:id", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager), h.Delete)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func seedSchedule(t *testing.T, db *gorm.DB, assetID string, dueInDays int) *entity.MaintenanceSchedule {
	t.Helper()
	freq := 90
	due := time.Now().Truncate(24 * time.Hour).AddDate(0, 0, dueInDays)
	schedule := &entity.MaintenanceSchedule{
		ID:            uuid.New().String()[:32],
		AssetID:       assetID,
		ScheduleType:  "service",
		Name:          "Scheduled service",
		FrequencyDays: &freq,
		NextDueDate:   &due,
		IsActive:      true,
		Priority:      "medium",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := db.Create(schedule).Error; err != nil {
		t.Fatalf("Failed to seed schedule: %v", err)
	}
	return schedule
}

func TestMaintenanceCreateRequiresFrequency(t *testing.T) {
	env := setupMaintenanceTest(t)
	asset := testutil.SeedAsset(t, env.DB, "TRK-5001")

	w := testutil.DoRequest(env.Router, "POST", "/api/maintenance", map[string]interface{}{
		"asset_id":      asset.ID,
		"schedule_type": "inspection",
		"name":          "No trigger",
	}, testutil.AdminToken())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without frequency trigger, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/maintenance", map[string]interface{}{
		"asset_id":       asset.ID,
		"schedule_type":  "inspection",
		"name":           "Mileage trigger",
		"frequency_mileage": 10000,
	}, testutil.AdminToken())
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 with mileage trigger, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMaintenanceDueSoonComputation(t *testing.T) {
	env := setupMaintenanceTest(t)
	asset := testutil.SeedAsset(t, env.DB, "TRK-5002")
	seedSchedule(t, env.DB, asset.ID, -1) // 昨天到期
	seedSchedule(t, env.DB, asset.ID, 7)
	seedSchedule(t, env.DB, asset.ID, 60) // 窗口外

	w := testutil.DoRequest(env.Router, "GET", "/api/maintenance/due-soon?days=30", nil, testutil.RoleToken(entity.RoleViewer))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	items := resp["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("Expected 2 schedules in 30-day window, got %d", len(items))
	}

	overdueSeen := false
	for _, it := range items {
		m := it.(map[string]interface{})
		if m["is_overdue"] == true {
			overdueSeen = true
			if m["days_until_due"] != -1.0 {
				t.Errorf("Expected days_until_due -1, got %v", m["days_until_due"])
			}
		}
	}
	if !overdueSeen {
		t.Error("Expected an overdue schedule in results")
	}
}

func TestMaintenanceDeleteDeactivates(t *testing.T) {
	env := setupMaintenanceTest(t)
	asset := testutil.SeedAsset(t, env.DB, "TRK-5003")
	schedule := seedSchedule(t, env.DB, asset.ID, 10)

	w := testutil.DoRequest(env.Router, "DELETE", "/api/maintenance/"+schedule.ID, nil, testutil.AdminToken())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got entity.MaintenanceSchedule
	if err := env.DB.First(&got, "id = ?", schedule.ID).Error; err != nil {
		t.Fatalf("Expected row to survive delete: %v", err)
	}
	if got.IsActive {
		t.Error("Expected schedule to be deactivated")
	}
}
