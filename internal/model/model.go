// Package model defines domain entities shared by the client, services and repositories.
package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Credentials is the persisted credential record. The JSON layout matches the backend SDK's
// storage format so that a record written by the web front end can be replayed here.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Expires      int64  `json:"expires,omitempty"` // access token TTL in ms
	ExpiresAt    int64  `json:"expires_at"`        // epoch ms
}

// Expired reports whether the access token expiry lies before now.
func (c Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt < now.UnixMilli()
}

// ExpiryTime returns ExpiresAt as time.Time.
func (c Credentials) ExpiryTime() time.Time {
	return time.UnixMilli(c.ExpiresAt)
}

// RoleRef is a role reference that the backend returns either as a bare id or as an embedded role object.
type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON accepts "uuid", {"id": "uuid", ...} and null.
func (r *RoleRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = RoleRef{}
		return nil
	}
	if b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		*r = RoleRef{ID: id}
		return nil
	}
	type plain RoleRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = RoleRef(p)
	return nil
}

// User is the projection of the current backend user that the session keeps.
type User struct {
	ID        string  `json:"id"`
	Email     string  `json:"email,omitempty"`
	FirstName string  `json:"first_name,omitempty"`
	LastName  string  `json:"last_name,omitempty"`
	Role      RoleRef `json:"role"`
}

// DisplayName returns "First Last" or the email when no name is set.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

// Choice is one entry of a field's configured choice list.
type Choice struct {
	Text  string `json:"text" yaml:"text"`
	Value any    `json:"value" yaml:"value"`
}

// OptionNode is a node of a hierarchical option taxonomy (categories).
type OptionNode struct {
	Text     string       `json:"text" yaml:"text"`
	Value    string       `json:"value" yaml:"value"`
	Children []OptionNode `json:"children,omitempty" yaml:"children,omitempty"`
}
