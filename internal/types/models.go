package types

import "time"

// ArgoProfile is one vertical cast by one float at one time. The surrogate
// GlobalProfileID is allocated by the owning store from its configured range;
// the natural key (float_id, cycle_number, source_file_fingerprint) makes
// re-ingesting the same file a no-op.
type ArgoProfile struct {
	GlobalProfileID   int64      `gorm:"column:global_profile_id;primaryKey;autoIncrement:false" json:"global_profile_id"`
	SourceFile        string     `gorm:"column:source_file;size:255" json:"source_file"`
	SourceFingerprint string     `gorm:"column:source_file_fingerprint;size:128;index:idx_profiles_natural_key,unique,priority:3" json:"source_file_fingerprint"`
	LocalProfileID    int        `gorm:"column:local_profile_id" json:"local_profile_id"`
	FloatID           string     `gorm:"column:float_id;size:50;index:idx_profiles_float_id;index:idx_profiles_natural_key,unique,priority:1" json:"float_id"`
	CycleNumber       int        `gorm:"column:cycle_number;index:idx_profiles_natural_key,unique,priority:2" json:"cycle_number"`
	Datetime          *time.Time `gorm:"column:datetime;index:idx_profiles_datetime" json:"datetime"`
	Latitude          *float64   `gorm:"column:latitude;index:idx_profiles_location,priority:1" json:"latitude"`
	Longitude         *float64   `gorm:"column:longitude;index:idx_profiles_location,priority:2" json:"longitude"`
	MinPressure       *float64   `gorm:"column:min_pressure" json:"min_pressure"`
	MaxPressure       *float64   `gorm:"column:max_pressure" json:"max_pressure"`
	MeasurementCount  int        `gorm:"column:measurement_count" json:"measurement_count"`
	ProjectName       string     `gorm:"column:project_name;size:100" json:"project_name"`
	Institution       string     `gorm:"column:institution;size:255" json:"institution"`
	DataMode          string     `gorm:"column:data_mode;size:10" json:"data_mode"`
	CreatedAt         time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (ArgoProfile) TableName() string { return "argo_profiles" }

// ArgoMeasurement is one sample at one depth level of one profile. Level is
// dense 0..N-1 within a profile. Position and time are denormalized from the
// parent profile for query convenience.
type ArgoMeasurement struct {
	GlobalProfileID int64      `gorm:"column:global_profile_id;primaryKey;autoIncrement:false" json:"global_profile_id"`
	Level           int        `gorm:"column:level;primaryKey;autoIncrement:false" json:"level"`
	Pressure        *float64   `gorm:"column:pressure;index:idx_measurements_pressure" json:"pressure"`
	Temperature     *float64   `gorm:"column:temperature" json:"temperature"`
	Salinity        *float64   `gorm:"column:salinity" json:"salinity"`
	Latitude        *float64   `gorm:"column:latitude" json:"latitude"`
	Longitude       *float64   `gorm:"column:longitude" json:"longitude"`
	Datetime        *time.Time `gorm:"column:datetime" json:"datetime"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (ArgoMeasurement) TableName() string { return "argo_measurements" }

// Automation run statuses.
const (
	RunStatusStarted   = "started"
	RunStatusCompleted = "completed"
	RunStatusError     = "error"
)

// AutomationRun is one attempted ingestion tick.
type AutomationRun struct {
	ID                int64     `gorm:"column:id;primaryKey" json:"id"`
	RunTimestamp      time.Time `gorm:"column:run_timestamp;index:idx_automation_log_timestamp" json:"run_timestamp"`
	Status            string    `gorm:"column:status;size:50;index:idx_automation_log_status" json:"status"`
	DataSource        string    `gorm:"column:data_source;size:100" json:"data_source"`
	FilesChecked      int       `gorm:"column:files_checked" json:"files_checked"`
	FilesDownloaded   int       `gorm:"column:files_downloaded" json:"files_downloaded"`
	FilesProcessed    int       `gorm:"column:files_processed" json:"files_processed"`
	ProfilesAdded     int       `gorm:"column:profiles_added" json:"profiles_added"`
	MeasurementsAdded int       `gorm:"column:measurements_added" json:"measurements_added"`
	DurationSeconds   float64   `gorm:"column:duration_seconds" json:"duration_seconds"`
	ErrorMessage      string    `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
}

func (AutomationRun) TableName() string { return "automation_log" }
