package handler

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/bitfantasy/fleetops/internal/fleet/service"
	"github.com/bitfantasy/fleetops/internal/fleet/testutil"
	"github.com/bitfantasy/fleetops/internal/middleware"
)

func setupJobCardTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	svc := service.NewJobCardService(repos.JobCard, repos.Asset, repos.Workshop, repos.Schedule, repos.Part, repos.User, repos.AuditLog, nil, "", db)
	h := NewJobCardHandler(svc)

	api := testutil.AuthGroup(router, "/api")
	api.GET("/job-cards", h.List)
	api.GET("/job-cards/stats", h.Stats)
	api.GET("/job-cards/new", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager, entity.RoleSupervisor), h.NewForm)
	api.GET("/job-cards/:id", h.Get)
	api.POST("/job-cards", middleware.RequireRoles(entity.RoleAdmin, entity.RoleFleetManager, entity.RoleSupervisor), h.Create)
	api.PUT("/job-cards/:id", h.Update)
	api.POST("/job-cards/:id/labor", h.AddLaborEntry)
	api.POST("/job-cards/:id/parts", h.AddPartsUsed)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestJobCardCreateAssignsMonthlyNumber(t *testing.T) {
	env := setupJobCardTest(t)
	token := testutil.AdminToken()
	asset := testutil.SeedAsset(t, env.DB, "TRK-1001")
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 10)

	w := testutil.DoRequest(env.Router, "POST", "/api/job-cards", map[string]interface{}{
		"asset_id":    asset.ID,
		"workshop_id": workshop.ID,
		"job_type":    "repair",
		"title":       "Brake inspection",
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := testutil.ParseResponse(w)
	jobNumber, _ := resp["job_number"].(string)
	wantPrefix := "JC" + time.Now().Format("200601")
	if !strings.HasPrefix(jobNumber, wantPrefix) {
		t.Errorf("Expected job number prefix %s, got %s", wantPrefix, jobNumber)
	}
	if len(jobNumber) != len(wantPrefix)+5 {
		t.Errorf("Expected 5-digit sequence, got %s", jobNumber)
	}

	// 第二张工单序号递增
	w2 := testutil.DoRequest(env.Router, "POST", "/api/job-cards", map[string]interface{}{
		"asset_id":    asset.ID,
		"workshop_id": workshop.ID,
		"job_type":    "service",
		"title":       "Oil change",
	}, token)
	if w2.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w2.Code, w2.Body.String())
	}
	resp2 := testutil.ParseResponse(w2)
	if resp2["job_number"] != fmt.Sprintf("%s%05d", wantPrefix, 2) {
		t.Errorf("Expected sequence 2, got %v", resp2["job_number"])
	}

	// 里程从资产快照
	if m, ok := resp["mileage_at_service"].(float64); !ok || int(m) != asset.CurrentMileage {
		t.Errorf("Expected mileage snapshot %d, got %v", asset.CurrentMileage, resp["mileage_at_service"])
	}
}

func TestJobCardNewFormMetadata(t *testing.T) {
	env := setupJobCardTest(t)
	asset := testutil.SeedAsset(t, env.DB, "TRK-2200")
	workshop := testutil.SeedWorkshop(t, env.DB, "North Depot", 6)
	testutil.SeedJobCard(t, env.DB, asset.ID, workshop.ID, "JC20260100007")

	// 开单表单只对能建工单的角色开放
	w := testutil.DoRequest(env.Router, "GET", "/api/job-cards/new", nil, testutil.RoleToken(entity.RoleTechnician))
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for technician, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/job-cards/new", nil, testutil.RoleToken(entity.RoleSupervisor))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)

	next, _ := resp["next_job_number"].(string)
	wantPrefix := "JC" + time.Now().Format("200601")
	if !strings.HasPrefix(next, wantPrefix) || len(next) != len(wantPrefix)+5 {
		t.Errorf("Expected next job number preview %sXXXXX, got %q", wantPrefix, next)
	}

	options := resp["options"].(map[string]interface{})
	assets := options["assets"].([]interface{})
	if len(assets) != 1 {
		t.Fatalf("Expected 1 operational asset option, got %v", options["assets"])
	}
	if assets[0].(map[string]interface{})["registration"] != "TRK-2200" {
		t.Errorf("Expected asset option TRK-2200, got %v", assets[0])
	}
	if len(options["workshops"].([]interface{})) != 1 {
		t.Errorf("Expected 1 workshop option, got %v", options["workshops"])
	}
	defaults := resp["defaults"].(map[string]interface{})
	if defaults["job_type"] != "unplanned" || defaults["priority"] != "medium" {
		t.Errorf("Unexpected defaults: %v", defaults)
	}
}

func TestJobCardCreateConcurrentNumbering(t *testing.T) {
	env := setupJobCardTest(t)
	token := testutil.AdminToken()
	asset := testutil.SeedAsset(t, env.DB, "TRK-1003")
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 10)

	// 空表上并发开单，首单无行可锁，靠唯一索引+重试保证不重号
	const workers = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
		failed  []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w := testutil.DoRequest(env.Router, "POST", "/api/job-cards", map[string]interface{}{
				"asset_id":    asset.ID,
				"workshop_id": workshop.ID,
				"job_type":    "repair",
				"title":       fmt.Sprintf("Concurrent job %d", n),
			}, token)
			mu.Lock()
			defer mu.Unlock()
			if w.Code != http.StatusCreated {
				failed = append(failed, fmt.Sprintf("worker %d got %d: %s", n, w.Code, w.Body.String()))
				return
			}
			resp := testutil.ParseResponse(w)
			numbers[resp["job_number"].(string)] = true
		}(i)
	}
	wg.Wait()

	if len(failed) > 0 {
		t.Fatalf("Concurrent creates failed: %v", failed)
	}
	if len(numbers) != workers {
		t.Errorf("Expected %d distinct job numbers, got %d: %v", workers, len(numbers), numbers)
	}
}

func TestJobCardCreateRejectsUnknownAsset(t *testing.T) {
	env := setupJobCardTest(t)
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 10)

	w := testutil.DoRequest(env.Router, "POST", "/api/job-cards", map[string]interface{}{
		"asset_id":    "no-such-asset",
		"workshop_id": workshop.ID,
		"job_type":    "repair",
		"title":       "Ghost job",
	}, testutil.AdminToken())
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestJobCardCreateForbiddenForTechnician(t *testing.T) {
	env := setupJobCardTest(t)
	asset := testutil.SeedAsset(t, env.DB, "TRK-1002")
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 10)

	w := testutil.DoRequest(env.Router, "POST", "/api/job-cards", map[string]interface{}{
		"asset_id":    asset.ID,
		"workshop_id": workshop.ID,
		"job_type":    "repair",
		"title":       "Not allowed",
	}, testutil.RoleToken(entity.RoleTechnician))
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLaborEntryReconcilesCosts(t *testing.T) {
	env := setupJobCardTest(t)
	token := testutil.AdminToken()
	asset := testutil.SeedAsset(t, env.DB, "TRK-2001")
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 10)
	job := testutil.SeedJobCard(t, env.DB, asset.ID, workshop.ID, "JC20250100001")
	tech := testutil.SeedUser(t, env.DB, "tech@test.com", "pw", entity.RoleTechnician)

	w := testutil.DoRequest(env.Router, "POST", "/api/job-cards/"+job.ID+"/labor", map[string]interface{}{
		"technician_id": tech.ID,
		"hours_worked":  2.5,
		"hourly_rate":   40.0,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["total_cost"] != 100.0 {
		t.Errorf("Expected entry total 100, got %v", resp["total_cost"])
	}

	// 第二条工时后汇总应为两条之和
	testutil.DoRequest(env.Router, "POST", "/api/job-cards/"+job.ID+"/labor", map[string]interface{}{
		"technician_id": tech.ID,
		"hours_worked":  1.0,
		"hourly_rate":   50.0,
	}, token)

	var got entity.JobCard
	if err := env.DB.First(&got, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("Failed to reload job: %v", err)
	}
	if got.LaborCost == nil || *got.LaborCost != 150.0 {
		t.Errorf("Expected labor_cost 150, got %v", got.LaborCost)
	}
	if got.ActualCost == nil || *got.ActualCost != 150.0 {
		t.Errorf("Expected actual_cost 150, got %v", got.ActualCost)
	}
}

func TestPartsUsedDecrementsStockAndReconciles(t *testing.T) {
	env := setupJobCardTest(t)
	token := testutil.AdminToken()
	asset := testutil.SeedAsset(t, env.DB, "TRK-2002")
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 10)
	job := testutil.SeedJobCard(t, env.DB, asset.ID, workshop.ID, "JC20250100002")
	part := testutil.SeedPart(t, env.DB, "FLT-100", 10, 3, 12.5)

	w := testutil.DoRequest(env.Router, "POST", "/api/job-cards/"+job.ID+"/parts", map[string]interface{}{
		"part_id":  part.ID,
		"quantity": 4,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["unit_cost"] != 12.5 {
		t.Errorf("Expected unit_cost snapshot 12.5, got %v", resp["unit_cost"])
	}
	if resp["total_cost"] != 50.0 {
		t.Errorf("Expected total_cost 50, got %v", resp["total_cost"])
	}

	var gotPart entity.Part
	env.DB.First(&gotPart, "id = ?", part.ID)
	if gotPart.QuantityInStock != 6 {
		t.Errorf("Expected stock 6 after usage, got %d", gotPart.QuantityInStock)
	}

	var gotJob entity.JobCard
	env.DB.First(&gotJob, "id = ?", job.ID)
	if gotJob.PartsCost == nil || *gotJob.PartsCost != 50.0 {
		t.Errorf("Expected parts_cost 50, got %v", gotJob.PartsCost)
	}
	if gotJob.ActualCost == nil || *gotJob.ActualCost != 50.0 {
		t.Errorf("Expected actual_cost 50, got %v", gotJob.ActualCost)
	}
}

func TestPartsUsedInsufficientStock(t *testing.T) {
	env := setupJobCardTest(t)
	asset := testutil.SeedAsset(t, env.DB, "TRK-2003")
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 10)
	job := testutil.SeedJobCard(t, env.DB, asset.ID, workshop.ID, "JC20250100003")
	part := testutil.SeedPart(t, env.DB, "FLT-200", 2, 1, 5.0)

	w := testutil.DoRequest(env.Router, "POST", "/api/job-cards/"+job.ID+"/parts", map[string]interface{}{
		"part_id":  part.ID,
		"quantity": 3,
	}, testutil.AdminToken())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	// 库存和费用都不能有变化
	var gotPart entity.Part
	env.DB.First(&gotPart, "id = ?", part.ID)
	if gotPart.QuantityInStock != 2 {
		t.Errorf("Expected stock unchanged at 2, got %d", gotPart.QuantityInStock)
	}
	var gotJob entity.JobCard
	env.DB.First(&gotJob, "id = ?", job.ID)
	if gotJob.PartsCost != nil {
		t.Errorf("Expected parts_cost untouched, got %v", *gotJob.PartsCost)
	}
}

func TestJobCardCompletionStampsTimestamps(t *testing.T) {
	env := setupJobCardTest(t)
	token := testutil.AdminToken()
	asset := testutil.SeedAsset(t, env.DB, "TRK-2004")
	workshop := testutil.SeedWorkshop(t, env.DB, "Central", 10)
	job := testutil.SeedJobCard(t, env.DB, asset.ID, workshop.ID, "JC20250100004")

	w := testutil.DoRequest(env.Router, "PUT", "/api/job-cards/"+job.ID, map[string]interface{}{
		"status": "in_progress",
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got entity.JobCard
	env.DB.First(&got, "id = ?", job.ID)
	if got.ActualStart == nil {
		t.Fatal("Expected actual_start to be stamped")
	}
	firstStart := *got.ActualStart

	w = testutil.DoRequest(env.Router, "PUT", "/api/job-cards/"+job.ID, map[string]interface{}{
		"status": "completed",
	}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	env.DB.First(&got, "id = ?", job.ID)
	if got.ActualEnd == nil || got.CompletedAt == nil {
		t.Fatal("Expected actual_end and completed_at to be stamped")
	}
	if !got.ActualStart.Equal(firstStart) {
		t.Error("Expected actual_start to be stamped only once")
	}
}

func TestJobCardListFilters(t *testing.T) {
	env := setupJobCardTest(t)
	token := testutil.AdminToken()
	asset := testutil.SeedAsset(t, env.DB, "TRK-3001")
	w1 := testutil.SeedWorkshop(t, env.DB, "North", 5)
	w2 := testutil.SeedWorkshop(t, env.DB, "South", 5)
	testutil.SeedJobCard(t, env.DB, asset.ID, w1.ID, "JC20250100010")
	testutil.SeedJobCard(t, env.DB, asset.ID, w2.ID, "JC20250100011")

	w := testutil.DoRequest(env.Router, "GET", "/api/job-cards?workshop_id="+w1.ID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	items := resp["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("Expected 1 job for workshop, got %d", len(items))
	}
	if resp["total"] != 1.0 {
		t.Errorf("Expected total 1, got %v", resp["total"])
	}
	if resp["current_page"] != 1.0 {
		t.Errorf("Expected current_page 1, got %v", resp["current_page"])
	}
}
