package entity

import "time"

// JobCard 维修工单。一张工单对应一台资产的一次维修/保养任务
type JobCard struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	JobNumber string `json:"job_number" gorm:"size:50;uniqueIndex;not null"` // JC<YYYYMM><5位序号>

	AssetID               string  `json:"asset_id" gorm:"size:32;not null;index"`
	WorkshopID            string  `json:"workshop_id" gorm:"size:32;not null;index"`
	MaintenanceScheduleID *string `json:"maintenance_schedule_id" gorm:"size:32"`

	// 工单内容
	JobType       string `json:"job_type" gorm:"size:50;not null"` // planned/unplanned/inspection/repair/service
	Title         string `json:"title" gorm:"size:200;not null"`
	Description   string `json:"description" gorm:"type:text"`
	ReportedIssue string `json:"reported_issue" gorm:"type:text"`
	Diagnosis     string `json:"diagnosis" gorm:"type:text"`
	WorkPerformed string `json:"work_performed" gorm:"type:text"`

	// 状态与优先级
	Status   string `json:"status" gorm:"size:50;default:pending;index"` // pending/assigned/in_progress/on_hold/completed/cancelled
	Priority string `json:"priority" gorm:"size:20;default:medium"`

	// 排期
	ScheduledStart *time.Time `json:"scheduled_start"`
	ScheduledEnd   *time.Time `json:"scheduled_end"`
	ActualStart    *time.Time `json:"actual_start"`
	ActualEnd      *time.Time `json:"actual_end"`

	// 费用。actual_cost 始终等于 labor_cost + parts_cost
	EstimatedCost *float64 `json:"estimated_cost" gorm:"type:decimal(10,2)"`
	ActualCost    *float64 `json:"actual_cost" gorm:"type:decimal(10,2)"`
	LaborCost     *float64 `json:"labor_cost" gorm:"type:decimal(10,2)"`
	PartsCost     *float64 `json:"parts_cost" gorm:"type:decimal(10,2)"`

	// 进场里程快照
	MileageAtService *int `json:"mileage_at_service"`

	AssignedTo *string `json:"assigned_to" gorm:"size:32"`
	CreatedBy  string  `json:"created_by" gorm:"size:32"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Asset              *Asset              `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
	Workshop           *Workshop           `json:"workshop,omitempty" gorm:"foreignKey:WorkshopID"`
	AssignedTechnician *User               `json:"assigned_technician,omitempty" gorm:"foreignKey:AssignedTo"`
	LaborEntries       []LaborEntry        `json:"labor_entries,omitempty" gorm:"foreignKey:JobCardID"`
	PartsUsed          []PartsUsed         `json:"parts_used,omitempty" gorm:"foreignKey:JobCardID"`
	Attachments        []JobCardAttachment `json:"attachments,omitempty" gorm:"foreignKey:JobCardID"`
}

func (JobCard) TableName() string {
	return "job_cards"
}

// 工单状态
const (
	JobStatusPending    = "pending"
	JobStatusAssigned   = "assigned"
	JobStatusInProgress = "in_progress"
	JobStatusOnHold     = "on_hold"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
)

// 工单类型
const (
	JobTypePlanned    = "planned"
	JobTypeUnplanned  = "unplanned"
	JobTypeInspection = "inspection"
	JobTypeRepair     = "repair"
	JobTypeService    = "service"
)

// LaborEntry 工时记录
type LaborEntry struct {
	ID           string `json:"id" gorm:"primaryKey;size:32"`
	JobCardID    string `json:"job_card_id" gorm:"size:32;not null;index"`
	TechnicianID string `json:"technician_id" gorm:"size:32;not null"`

	WorkDate    time.Time `json:"work_date" gorm:"type:date;not null"`
	HoursWorked float64   `json:"hours_worked" gorm:"type:decimal(5,2);not null"`
	HourlyRate  float64   `json:"hourly_rate" gorm:"type:decimal(10,2)"`
	TotalCost   float64   `json:"total_cost" gorm:"type:decimal(10,2)"` // hours_worked × hourly_rate
	Notes       string    `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`

	Technician *User `json:"technician,omitempty" gorm:"foreignKey:TechnicianID"`
}

func (LaborEntry) TableName() string {
	return "labor_entries"
}

// PartsUsed 配件消耗记录。unit_cost 为用料时的价格快照，后续调价不回溯
type PartsUsed struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	JobCardID string `json:"job_card_id" gorm:"size:32;not null;index"`
	PartID    string `json:"part_id" gorm:"size:32;not null;index"`

	Quantity  int     `json:"quantity" gorm:"not null"`
	UnitCost  float64 `json:"unit_cost" gorm:"type:decimal(10,2)"`
	TotalCost float64 `json:"total_cost" gorm:"type:decimal(10,2)"` // quantity × unit_cost
	Notes     string  `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`

	Part *Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
}

func (PartsUsed) TableName() string {
	return "parts_used"
}

// JobCardAttachment 工单附件（故障照片等），文件本体存对象存储
type JobCardAttachment struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	JobCardID string `json:"job_card_id" gorm:"size:32;not null;index"`

	FileName    string `json:"file_name" gorm:"size:255;not null"`
	FileSize    int64  `json:"file_size"`
	ContentType string `json:"content_type" gorm:"size:100"`
	ObjectPath  string `json:"object_path" gorm:"size:500;not null"`

	UploadedBy string    `json:"uploaded_by" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (JobCardAttachment) TableName() string {
	return "job_card_attachments"
}
