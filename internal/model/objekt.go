package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Objekt field names used by the listing and the resolver.
const (
	FieldID                 = "id"
	FieldName               = "name"
	FieldDescription        = "beschreibung"
	FieldStatus             = "status"
	FieldRating             = "bewertung"
	FieldCategory           = "kategorie"
	FieldPrimaryImage       = "abbildung"
	FieldSecondaryImages    = "weitereAbbildungen"
	FieldSecondaryImageFile = "directus_files_id"
)

// Objekt is a catalog record kept as raw JSON per field. Single-field patches replace one key
// and leave every other value byte-identical.
type Objekt map[string]json.RawMessage

// ID returns the integer record id, or 0 when missing or not numeric.
func (o Objekt) ID() int64 {
	raw, ok := o[FieldID]
	if !ok {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0
		}
		n = json.Number(s)
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// String returns a string field or "" when missing, null or not a string.
func (o Objekt) String(field string) string {
	var s string
	if raw, ok := o[field]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// Rating returns the rating field; ok is false when null or missing.
// An embedded rating object yields its id.
func (o Objekt) Rating() (int, bool) {
	raw, ok := o[FieldRating]
	if !ok {
		return 0, false
	}
	var n *int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == nil {
			return 0, false
		}
		return *n, true
	}
	var obj struct {
		ID *int `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.ID == nil {
		return 0, false
	}
	return *obj.ID, true
}

// With returns a shallow copy of o with field set to value.
func (o Objekt) With(field string, value any) (Objekt, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", field, err)
	}
	out := make(Objekt, len(o)+1)
	for k, v := range o {
		out[k] = v
	}
	out[field] = raw
	return out, nil
}

// StatusLabel renders the status enum the way the admin table shows it.
func StatusLabel(status string) string {
	switch status {
	case "draft":
		return "Entwurf"
	case "uploaded":
		return "Formular"
	case "back-to-author":
		return "Zurück zur Autorin"
	case "published":
		return "Veröffentlicht"
	}
	return fmt.Sprintf("Unbekannt (%s)", status)
}

// RatingLabel renders the rating enum; ok=false renders as "-".
func RatingLabel(rating int, ok bool) string {
	if !ok {
		return "-"
	}
	switch rating {
	case 1:
		return "Raus"
	case 2:
		return "Raus (?)"
	case 3:
		return "Rein (?)"
	case 4:
		return "Rein"
	case 6:
		return "Rein, wenn"
	case 7:
		return "Parking"
	}
	return fmt.Sprintf("Unbekannt (%d)", rating)
}
