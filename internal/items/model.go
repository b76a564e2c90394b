package items

import (
	"time"

	"gorm.io/datatypes"
)

// Item models a physical or electronic copy attached to a holdings record.
type Item struct {
	ID                        string            `gorm:"column:id;primaryKey;size:36;not null"`
	HRID                      string            `gorm:"column:hrid;size:64;not null;uniqueIndex:idx_items_hrid"`
	HoldingsRecordID          string            `gorm:"column:holdings_record_id;size:36;not null;index:idx_items_holdings"`
	Barcode                   string            `gorm:"column:barcode;size:190;not null;default:''"`
	Status                    string            `gorm:"column:status;size:64;not null;default:''"`
	PermanentLocationID       string            `gorm:"column:permanent_location_id;size:36;not null;default:''"`
	TemporaryLocationID       string            `gorm:"column:temporary_location_id;size:36;not null;default:''"`
	ItemLevelCallNumber       string            `gorm:"column:item_level_call_number;size:512;not null;default:''"`
	ItemLevelCallNumberPrefix string            `gorm:"column:item_level_call_number_prefix;size:190;not null;default:''"`
	ItemLevelCallNumberSuffix string            `gorm:"column:item_level_call_number_suffix;size:190;not null;default:''"`
	ItemLevelCallNumberTypeID string            `gorm:"column:item_level_call_number_type_id;size:36;not null;default:''"`
	EffectiveLocationID       string            `gorm:"column:effective_location_id;size:36;not null;default:''"`
	EffectiveCallNumber       string            `gorm:"column:effective_call_number;size:512;not null;default:''"`
	EffectiveCallNumberPrefix string            `gorm:"column:effective_call_number_prefix;size:190;not null;default:''"`
	EffectiveCallNumberSuffix string            `gorm:"column:effective_call_number_suffix;size:190;not null;default:''"`
	EffectiveCallNumberTypeID string            `gorm:"column:effective_call_number_type_id;size:36;not null;default:''"`
	AdditionalProperties      datatypes.JSONMap `gorm:"column:additional_properties"`
	CreatedAt                 time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Item) TableName() string {
	return "items"
}
