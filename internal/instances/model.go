package instances

import (
	"time"

	"gorm.io/datatypes"
)

// Instance models a bibliographic instance that holdings records hang off.
type Instance struct {
	ID                   string            `gorm:"column:id;primaryKey;size:36;not null"`
	HRID                 string            `gorm:"column:hrid;size:64;not null;uniqueIndex:idx_instances_hrid"`
	Title                string            `gorm:"column:title;type:text;not null;default:''"`
	Source               string            `gorm:"column:source;size:64;not null;default:''"`
	InstanceTypeID       string            `gorm:"column:instance_type_id;size:36;not null;default:''"`
	AdditionalProperties datatypes.JSONMap `gorm:"column:additional_properties"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Instance) TableName() string {
	return "instances"
}
