package handler

import (
	"net/http"

	"github.com/bitfantasy/fleetops/internal/fleet/service"
	"github.com/gin-gonic/gin"
)

// JobCardHandler 工单处理器
type JobCardHandler struct {
	svc *service.JobCardService
}

// NewJobCardHandler 创建工单处理器
func NewJobCardHandler(svc *service.JobCardService) *JobCardHandler {
	return &JobCardHandler{svc: svc}
}

// List 工单列表
func (h *JobCardHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":      c.Query("status"),
		"workshop_id": c.Query("workshop_id"),
		"asset_id":    c.Query("asset_id"),
		"priority":    c.Query("priority"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		RespondError(c, err)
		return
	}
	List(c, items, total, page, pageSize)
}

// NewForm 新建工单表单元数据
func (h *JobCardHandler) NewForm(c *gin.Context) {
	form, err := h.svc.NewForm(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// Get 工单详情
func (h *JobCardHandler) Get(c *gin.Context) {
	job, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Create 创建工单
func (h *JobCardHandler) Create(c *gin.Context) {
	var req service.CreateJobCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.svc.Create(c.Request.Context(), GetUserID(c), c.ClientIP(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// Update 更新工单
func (h *JobCardHandler) Update(c *gin.Context) {
	var req service.UpdateJobCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.svc.Update(c.Request.Context(), c.Param("id"), GetUserID(c), c.ClientIP(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// AddLaborEntry 录入工时
func (h *JobCardHandler) AddLaborEntry(c *gin.Context) {
	var req service.AddLaborEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	entry, err := h.svc.AddLaborEntry(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// AddPartsUsed 工单领料
func (h *JobCardHandler) AddPartsUsed(c *gin.Context) {
	var req service.AddPartsUsedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	usage, err := h.svc.AddPartsUsed(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, usage)
}

// Stats 工单统计
func (h *JobCardHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// UploadAttachment 上传附件
func (h *JobCardHandler) UploadAttachment(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		Error(c, http.StatusBadRequest, "File is required")
		return
	}

	src, err := file.Open()
	if err != nil {
		Error(c, http.StatusBadRequest, "Cannot read uploaded file")
		return
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	att, err := h.svc.UploadAttachment(c.Request.Context(), c.Param("id"), GetUserID(c),
		src, file.Filename, file.Size, contentType)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, att)
}

// ListAttachments 附件列表
func (h *JobCardHandler) ListAttachments(c *gin.Context) {
	items, err := h.svc.ListAttachments(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
