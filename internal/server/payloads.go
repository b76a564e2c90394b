package server

import (
	"time"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/holdings"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/instances"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/inventoryview"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/items"
)

type instancePayload struct {
	ID                   string                 `json:"id"`
	HRID                 string                 `json:"hrid"`
	Title                string                 `json:"title"`
	Source               string                 `json:"source"`
	InstanceTypeID       string                 `json:"instance_type_id"`
	AdditionalProperties map[string]interface{} `json:"additional_properties,omitempty"`
	CreatedAtSeconds     int64                  `json:"created_at_s,omitempty"`
	UpdatedAtSeconds     int64                  `json:"updated_at_s,omitempty"`
}

func (p instancePayload) toInstance() instances.Instance {
	return instances.Instance{
		ID:                   p.ID,
		HRID:                 p.HRID,
		Title:                p.Title,
		Source:               p.Source,
		InstanceTypeID:       p.InstanceTypeID,
		AdditionalProperties: p.AdditionalProperties,
	}
}

func newInstancePayload(instance instances.Instance) instancePayload {
	return instancePayload{
		ID:                   instance.ID,
		HRID:                 instance.HRID,
		Title:                instance.Title,
		Source:               instance.Source,
		InstanceTypeID:       instance.InstanceTypeID,
		AdditionalProperties: instance.AdditionalProperties,
		CreatedAtSeconds:     unixSeconds(instance.CreatedAt),
		UpdatedAtSeconds:     unixSeconds(instance.UpdatedAt),
	}
}

type holdingsPayload struct {
	ID                   string                 `json:"id"`
	HRID                 string                 `json:"hrid"`
	InstanceID           string                 `json:"instance_id"`
	PermanentLocationID  string                 `json:"permanent_location_id"`
	TemporaryLocationID  string                 `json:"temporary_location_id"`
	EffectiveLocationID  string                 `json:"effective_location_id"`
	CallNumber           string                 `json:"call_number"`
	CallNumberPrefix     string                 `json:"call_number_prefix"`
	CallNumberSuffix     string                 `json:"call_number_suffix"`
	CallNumberTypeID     string                 `json:"call_number_type_id"`
	AdditionalProperties map[string]interface{} `json:"additional_properties,omitempty"`
	CreatedAtSeconds     int64                  `json:"created_at_s,omitempty"`
	UpdatedAtSeconds     int64                  `json:"updated_at_s,omitempty"`
}

// toRecord ignores the effective location; it is derived on write.
func (p holdingsPayload) toRecord() holdings.Record {
	return holdings.Record{
		ID:                   p.ID,
		HRID:                 p.HRID,
		InstanceID:           p.InstanceID,
		PermanentLocationID:  p.PermanentLocationID,
		TemporaryLocationID:  p.TemporaryLocationID,
		CallNumber:           p.CallNumber,
		CallNumberPrefix:     p.CallNumberPrefix,
		CallNumberSuffix:     p.CallNumberSuffix,
		CallNumberTypeID:     p.CallNumberTypeID,
		AdditionalProperties: p.AdditionalProperties,
	}
}

func newHoldingsPayload(record holdings.Record) holdingsPayload {
	return holdingsPayload{
		ID:                   record.ID,
		HRID:                 record.HRID,
		InstanceID:           record.InstanceID,
		PermanentLocationID:  record.PermanentLocationID,
		TemporaryLocationID:  record.TemporaryLocationID,
		EffectiveLocationID:  record.EffectiveLocationID,
		CallNumber:           record.CallNumber,
		CallNumberPrefix:     record.CallNumberPrefix,
		CallNumberSuffix:     record.CallNumberSuffix,
		CallNumberTypeID:     record.CallNumberTypeID,
		AdditionalProperties: record.AdditionalProperties,
		CreatedAtSeconds:     unixSeconds(record.CreatedAt),
		UpdatedAtSeconds:     unixSeconds(record.UpdatedAt),
	}
}

type itemPayload struct {
	ID                        string                 `json:"id"`
	HRID                      string                 `json:"hrid"`
	HoldingsRecordID          string                 `json:"holdings_record_id"`
	Barcode                   string                 `json:"barcode"`
	Status                    string                 `json:"status"`
	PermanentLocationID       string                 `json:"permanent_location_id"`
	TemporaryLocationID       string                 `json:"temporary_location_id"`
	ItemLevelCallNumber       string                 `json:"item_level_call_number"`
	ItemLevelCallNumberPrefix string                 `json:"item_level_call_number_prefix"`
	ItemLevelCallNumberSuffix string                 `json:"item_level_call_number_suffix"`
	ItemLevelCallNumberTypeID string                 `json:"item_level_call_number_type_id"`
	EffectiveLocationID       string                 `json:"effective_location_id"`
	EffectiveCallNumber       *effectiveCallNumber   `json:"effective_call_number_components,omitempty"`
	AdditionalProperties      map[string]interface{} `json:"additional_properties,omitempty"`
	CreatedAtSeconds          int64                  `json:"created_at_s,omitempty"`
	UpdatedAtSeconds          int64                  `json:"updated_at_s,omitempty"`
}

type effectiveCallNumber struct {
	CallNumber string `json:"call_number"`
	Prefix     string `json:"prefix"`
	Suffix     string `json:"suffix"`
	TypeID     string `json:"type_id"`
}

func (p itemPayload) toItem() items.Item {
	return items.Item{
		ID:                        p.ID,
		HRID:                      p.HRID,
		HoldingsRecordID:          p.HoldingsRecordID,
		Barcode:                   p.Barcode,
		Status:                    p.Status,
		PermanentLocationID:       p.PermanentLocationID,
		TemporaryLocationID:       p.TemporaryLocationID,
		ItemLevelCallNumber:       p.ItemLevelCallNumber,
		ItemLevelCallNumberPrefix: p.ItemLevelCallNumberPrefix,
		ItemLevelCallNumberSuffix: p.ItemLevelCallNumberSuffix,
		ItemLevelCallNumberTypeID: p.ItemLevelCallNumberTypeID,
		AdditionalProperties:      p.AdditionalProperties,
	}
}

func newItemPayload(item items.Item) itemPayload {
	return itemPayload{
		ID:                        item.ID,
		HRID:                      item.HRID,
		HoldingsRecordID:          item.HoldingsRecordID,
		Barcode:                   item.Barcode,
		Status:                    item.Status,
		PermanentLocationID:       item.PermanentLocationID,
		TemporaryLocationID:       item.TemporaryLocationID,
		ItemLevelCallNumber:       item.ItemLevelCallNumber,
		ItemLevelCallNumberPrefix: item.ItemLevelCallNumberPrefix,
		ItemLevelCallNumberSuffix: item.ItemLevelCallNumberSuffix,
		ItemLevelCallNumberTypeID: item.ItemLevelCallNumberTypeID,
		EffectiveLocationID:       item.EffectiveLocationID,
		EffectiveCallNumber: &effectiveCallNumber{
			CallNumber: item.EffectiveCallNumber,
			Prefix:     item.EffectiveCallNumberPrefix,
			Suffix:     item.EffectiveCallNumberSuffix,
			TypeID:     item.EffectiveCallNumberTypeID,
		},
		AdditionalProperties: item.AdditionalProperties,
		CreatedAtSeconds:     unixSeconds(item.CreatedAt),
		UpdatedAtSeconds:     unixSeconds(item.UpdatedAt),
	}
}

type instanceCollectionPayload struct {
	Instances    []instancePayload `json:"instances"`
	TotalRecords int64             `json:"total_records"`
}

func newInstanceCollectionPayload(collection instances.Collection) instanceCollectionPayload {
	payload := instanceCollectionPayload{
		Instances:    make([]instancePayload, 0, len(collection.Instances)),
		TotalRecords: collection.TotalRecords,
	}
	for _, instance := range collection.Instances {
		payload.Instances = append(payload.Instances, newInstancePayload(instance))
	}
	return payload
}

type inventoryViewPayload struct {
	InstanceID      string            `json:"instance_id"`
	Instance        instancePayload   `json:"instance"`
	HoldingsRecords []holdingsPayload `json:"holdings_records"`
	Items           []itemPayload     `json:"items"`
}

func newInventoryViewPayload(view inventoryview.View) inventoryViewPayload {
	payload := inventoryViewPayload{
		InstanceID:      view.InstanceID,
		Instance:        newInstancePayload(view.Instance),
		HoldingsRecords: make([]holdingsPayload, 0, len(view.HoldingsRecords)),
		Items:           make([]itemPayload, 0, len(view.Items)),
	}
	for _, record := range view.HoldingsRecords {
		payload.HoldingsRecords = append(payload.HoldingsRecords, newHoldingsPayload(record))
	}
	for _, item := range view.Items {
		payload.Items = append(payload.Items, newItemPayload(item))
	}
	return payload
}

func unixSeconds(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().Unix()
}
