package items

import (
	"strings"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/holdings"
)

// EffectiveValues are the item fields derived from the item and its holdings record.
type EffectiveValues struct {
	LocationID       string
	CallNumber       string
	CallNumberPrefix string
	CallNumberSuffix string
	CallNumberTypeID string
}

// ResolveEffectiveValues applies item-over-holdings precedence to every derived field.
// Locations prefer temporary over permanent at each level.
func ResolveEffectiveValues(item Item, record holdings.Record) EffectiveValues {
	return EffectiveValues{
		LocationID: firstNonBlank(
			item.TemporaryLocationID,
			item.PermanentLocationID,
			record.TemporaryLocationID,
			record.PermanentLocationID,
		),
		CallNumber:       firstNonBlank(item.ItemLevelCallNumber, record.CallNumber),
		CallNumberPrefix: firstNonBlank(item.ItemLevelCallNumberPrefix, record.CallNumberPrefix),
		CallNumberSuffix: firstNonBlank(item.ItemLevelCallNumberSuffix, record.CallNumberSuffix),
		CallNumberTypeID: firstNonBlank(item.ItemLevelCallNumberTypeID, record.CallNumberTypeID),
	}
}

// effectiveValues reads the derived fields currently stored on item.
func effectiveValues(item Item) EffectiveValues {
	return EffectiveValues{
		LocationID:       item.EffectiveLocationID,
		CallNumber:       item.EffectiveCallNumber,
		CallNumberPrefix: item.EffectiveCallNumberPrefix,
		CallNumberSuffix: item.EffectiveCallNumberSuffix,
		CallNumberTypeID: item.EffectiveCallNumberTypeID,
	}
}

// applyEffectiveValues recomputes the derived fields and reports whether any changed.
func applyEffectiveValues(item *Item, record holdings.Record) bool {
	resolved := ResolveEffectiveValues(*item, record)
	if resolved == effectiveValues(*item) {
		return false
	}
	item.EffectiveLocationID = resolved.LocationID
	item.EffectiveCallNumber = resolved.CallNumber
	item.EffectiveCallNumberPrefix = resolved.CallNumberPrefix
	item.EffectiveCallNumberSuffix = resolved.CallNumberSuffix
	item.EffectiveCallNumberTypeID = resolved.CallNumberTypeID
	return true
}

func (v EffectiveValues) columns() map[string]interface{} {
	return map[string]interface{}{
		"effective_location_id":         v.LocationID,
		"effective_call_number":         v.CallNumber,
		"effective_call_number_prefix":  v.CallNumberPrefix,
		"effective_call_number_suffix":  v.CallNumberSuffix,
		"effective_call_number_type_id": v.CallNumberTypeID,
	}
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
