package migrations

import "time"

// Schema-only models. Repositories use pgx with hand-written SQL; these
// structs exist so gormigrate can create and drop the tables they query.

type phoneNumberModel struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	PhoneNumber string  `gorm:"type:varchar(20);not null;uniqueIndex"`
	IsActive    bool    `gorm:"not null;default:true"`
	Region      string  `gorm:"type:varchar(10)"`
	AreaCode    string  `gorm:"type:varchar(4)"`
	Carrier     string  `gorm:"type:varchar(40)"`
	HealthScore float64 `gorm:"type:double precision;not null;default:1"`
	SuccessRate float64 `gorm:"type:double precision;not null;default:1"`
	UsageCount  int64   `gorm:"not null;default:0"`
	LastUsedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (phoneNumberModel) TableName() string { return "phone_numbers" }

type assignmentModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	AgentID       string  `gorm:"type:text;not null"`
	PhoneNumberID string  `gorm:"type:uuid;not null"`
	ContactID     *string `gorm:"type:text"`
	FromNumber    string  `gorm:"type:varchar(20);not null"`
	ToNumber      string  `gorm:"type:varchar(20);not null"`
	Strategy      string  `gorm:"type:varchar(32);not null"`
	Reason        string  `gorm:"type:text"`
	CreatedAt     time.Time
}

func (assignmentModel) TableName() string { return "caller_id_assignments" }

type profileModel struct {
	ID        string `gorm:"type:text;primaryKey"`
	FirstName string `gorm:"type:text"`
	LastName  string `gorm:"type:text"`
	Email     string `gorm:"type:text"`
	CreatedAt time.Time
}

func (profileModel) TableName() string { return "profiles" }

type contactModel struct {
	ID              string  `gorm:"type:text;primaryKey"`
	FirstName       string  `gorm:"type:text"`
	LastName        string  `gorm:"type:text"`
	PhonePrimary    string  `gorm:"type:varchar(20)"`
	LeadScore       int     `gorm:"default:0"`
	Status          string  `gorm:"type:varchar(32)"`
	LastContactedBy *string `gorm:"type:text"`
	LastContactDate *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (contactModel) TableName() string { return "contacts" }

type interactionModel struct {
	ID              string `gorm:"type:text;primaryKey"`
	ContactID       string `gorm:"type:text;not null"`
	CreatedBy       string `gorm:"type:text;not null"`
	InteractionType string `gorm:"type:varchar(32)"`
	Notes           string `gorm:"type:text"`
	CreatedAt       time.Time
}

func (interactionModel) TableName() string { return "interactions" }

type callLogModel struct {
	ID          string    `gorm:"type:text;primaryKey"`
	CallSid     string    `gorm:"type:varchar(64)"`
	ContactID   string    `gorm:"type:text;not null"`
	AgentID     string    `gorm:"type:text;not null"`
	StartedAt   time.Time `gorm:"not null"`
	Duration    int       `gorm:"default:0"`
	Disposition string    `gorm:"type:varchar(32)"`
	Notes       string    `gorm:"type:text"`
}

func (callLogModel) TableName() string { return "call_logs" }

type qualitySampleModel struct {
	ID            string   `gorm:"type:uuid;primaryKey"`
	CallSid       string   `gorm:"type:varchar(64);not null"`
	PhoneNumberID *string  `gorm:"type:uuid"`
	MOSScore      *float64 `gorm:"column:mos_score;type:double precision"`
	Latency       *float64 `gorm:"type:double precision"`
	Jitter        *float64 `gorm:"type:double precision"`
	PacketLoss    *float64 `gorm:"type:double precision"`
	// Declared as a string so gorm can emit the DDL; pgx writes []string.
	SLOViolations string   `gorm:"column:slo_violations;type:text[];default:'{}'"`
	MeetsSLO      bool     `gorm:"column:meets_slo;not null"`
	CreatedAt     time.Time
}

func (qualitySampleModel) TableName() string { return "call_quality_metrics" }

type transcriptModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	CallSid        string  `gorm:"type:varchar(64);not null"`
	Speaker        string  `gorm:"type:varchar(16)"`
	TranscriptText string  `gorm:"type:text"`
	Confidence     float64 `gorm:"type:double precision"`
	StartTime      float64 `gorm:"type:double precision"`
	Duration       float64 `gorm:"type:double precision"`
	CreatedAt      time.Time
}

func (transcriptModel) TableName() string { return "transcripts" }

type analysisModel struct {
	ID               string  `gorm:"type:uuid;primaryKey"`
	CallSid          *string `gorm:"type:varchar(64)"`
	ContactID        *string `gorm:"type:text"`
	AnalysisType     string  `gorm:"type:varchar(32);not null"`
	AnalysisResult   []byte  `gorm:"type:jsonb"`
	ProcessingTimeMs float64 `gorm:"type:double precision"`
	Confidence       float64 `gorm:"type:double precision"`
	CreatedAt        time.Time
}

func (analysisModel) TableName() string { return "ai_analysis" }
