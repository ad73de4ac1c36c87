package models

import "fmt"

// CaptureRecord is the persisted history row for one completed capture.
// The row is written after the photo file exists; a record without a file
// can only mean the file was pruned or removed out of band.
type CaptureRecord struct {
	BaseModel
	AttemptID    string `gorm:"type:varchar(36);index" json:"attempt_id"`
	Filename     string `gorm:"type:varchar(255);uniqueIndex" json:"filename"`
	TemplateName string `gorm:"type:varchar(128)" json:"template_name"`
	DeviceID     string `gorm:"type:varchar(32)" json:"device_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	SizeBytes    int64  `json:"size_bytes"`
	Sequence     uint64 `json:"sequence"`
	DurationMs   int64  `json:"duration_ms"`
}

// TableName returns the database table name.
func (CaptureRecord) TableName() string {
	return "capture_records"
}

// Validate checks required fields before persistence.
func (r *CaptureRecord) Validate() error {
	if r.Filename == "" {
		return fmt.Errorf("capture record: filename is required")
	}
	if r.TemplateName == "" {
		return fmt.Errorf("capture record: template name is required")
	}
	return nil
}
