// Package media resolves the file references carried by catalog records into a MIME
// category, a display name and asset URLs.
//
// A reference arrives in one of several shapes: a bare file id, an embedded file object,
// a junction row wrapping either of those, or some other object carrying an id. Parse
// classifies the raw JSON once into a Ref; every resolver switches over Ref.Shape.
package media

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Shape tells which form a file reference arrived in.
type Shape int

const (
	// ShapeNone is an absent or unusable reference (null, empty, false).
	ShapeNone Shape = iota
	// ShapeScalar is a bare file id.
	ShapeScalar
	// ShapeFile is a file object: it has an id and a filename_disk key (even if null).
	ShapeFile
	// ShapeJunction is a junction row whose file reference is an embedded file object.
	ShapeJunction
	// ShapeJunctionID is a junction row whose file reference is a bare id.
	ShapeJunctionID
	// ShapeObject is any other object; ID may be empty.
	ShapeObject
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeFile:
		return "file"
	case ShapeJunction:
		return "junction"
	case ShapeJunctionID:
		return "junction-id"
	case ShapeObject:
		return "object"
	}
	return "none"
}

// File is the part of a backend file object the resolvers look at.
type File struct {
	ID               string
	Type             string
	FilenameDownload string
}

// Ref is a file reference in one of the shapes above.
type Ref struct {
	Shape    Shape
	// ID is the scalar id (ShapeScalar), the object's own id (ShapeFile, ShapeObject)
	// or the junction row id (ShapeJunction, ShapeJunctionID).
	ID       string
	// File is the object itself (ShapeFile, ShapeObject) or the nested file (ShapeJunction).
	File     *File
	// NestedID is the bare file id of a ShapeJunctionID row.
	NestedID string
}

// ID builds a scalar reference.
func ID(id string) Ref {
	if id == "" {
		return Ref{}
	}
	return Ref{Shape: ShapeScalar, ID: id}
}

// UnmarshalJSON implements json.Unmarshaler via Parse.
func (r *Ref) UnmarshalJSON(b []byte) error {
	*r = Parse(b)
	return nil
}

// MarshalJSON writes the id the reference resolves to, or null.
func (r Ref) MarshalJSON() ([]byte, error) {
	id := r.FileID()
	if id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(id)
}

// Parse classifies raw JSON into a Ref. Precedence: file object, junction row with
// embedded file, junction row with bare id, other object, scalar.
func Parse(raw json.RawMessage) Ref {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Ref{}
	}
	if raw[0] != '{' {
		return ID(scalar(raw))
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Ref{}
	}
	own := fileFromObject(obj)

	if _, hasDisk := obj["filename_disk"]; hasDisk && own.ID != "" {
		return Ref{Shape: ShapeFile, ID: own.ID, File: own}
	}
	if nested, ok := obj["directus_files_id"]; ok {
		nested = bytes.TrimSpace(nested)
		if len(nested) > 0 && nested[0] == '{' {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(nested, &inner); err == nil {
				return Ref{Shape: ShapeJunction, ID: own.ID, File: fileFromObject(inner)}
			}
		} else if id := scalar(nested); id != "" {
			return Ref{Shape: ShapeJunctionID, ID: own.ID, NestedID: id}
		}
	}
	return Ref{Shape: ShapeObject, ID: own.ID, File: own}
}

// ParseList parses a JSON array of references; anything else yields nil.
func ParseList(raw json.RawMessage) []Ref {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	refs := make([]Ref, 0, len(items))
	for _, it := range items {
		refs = append(refs, Parse(it))
	}
	return refs
}

// FileID returns the id of the file the reference points at, or "" if none resolves.
func (r Ref) FileID() string {
	switch r.Shape {
	case ShapeScalar, ShapeFile, ShapeObject:
		return r.ID
	case ShapeJunction:
		if r.File == nil {
			return ""
		}
		return r.File.ID
	case ShapeJunctionID:
		return r.NestedID
	}
	return ""
}

// mimeType returns the MIME type of the object or of the file nested in a junction row.
func (r Ref) mimeType() string {
	switch r.Shape {
	case ShapeFile, ShapeObject, ShapeJunction:
		if r.File != nil {
			return r.File.Type
		}
	}
	return ""
}

func (r Ref) downloadName() string {
	switch r.Shape {
	case ShapeFile, ShapeObject, ShapeJunction:
		if r.File != nil {
			return r.File.FilenameDownload
		}
	}
	return ""
}

func fileFromObject(obj map[string]json.RawMessage) *File {
	f := &File{ID: scalar(obj["id"])}
	_ = json.Unmarshal(obj["type"], &f.Type)
	_ = json.Unmarshal(obj["filename_download"], &f.FilenameDownload)
	return f
}

// scalar renders a JSON string or number as an id; null, false, 0 and "" yield "".
func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return ""
		}
		return s
	case 'n', 't', 'f', '{', '[':
		return ""
	}
	var n json.Number
	if json.Unmarshal(raw, &n) != nil {
		return ""
	}
	if f, err := n.Float64(); err != nil || f == 0 {
		return ""
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	return n.String()
}
