package holdings

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Record models a persisted holdings record.
type Record struct {
	ID                   string            `gorm:"column:id;primaryKey;size:36;not null"`
	HRID                 string            `gorm:"column:hrid;size:64;not null;uniqueIndex:idx_holdings_hrid"`
	InstanceID           string            `gorm:"column:instance_id;size:36;not null;default:'';index:idx_holdings_instance"`
	PermanentLocationID  string            `gorm:"column:permanent_location_id;size:36;not null;default:''"`
	TemporaryLocationID  string            `gorm:"column:temporary_location_id;size:36;not null;default:''"`
	EffectiveLocationID  string            `gorm:"column:effective_location_id;size:36;not null;default:''"`
	CallNumber           string            `gorm:"column:call_number;size:512;not null;default:''"`
	CallNumberPrefix     string            `gorm:"column:call_number_prefix;size:190;not null;default:''"`
	CallNumberSuffix     string            `gorm:"column:call_number_suffix;size:190;not null;default:''"`
	CallNumberTypeID     string            `gorm:"column:call_number_type_id;size:36;not null;default:''"`
	AdditionalProperties datatypes.JSONMap `gorm:"column:additional_properties"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "holdings_records"
}

// deriveEffectiveLocation sets the effective location to the temporary location when present.
func (r *Record) deriveEffectiveLocation() {
	if temporary := strings.TrimSpace(r.TemporaryLocationID); temporary != "" {
		r.EffectiveLocationID = temporary
		return
	}
	r.EffectiveLocationID = strings.TrimSpace(r.PermanentLocationID)
}
