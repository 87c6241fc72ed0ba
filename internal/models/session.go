package models

import (
	"encoding/json"
	"maps"
)

// UserSession is the last-known authenticated user: provider fields plus whatever the backend returned.
//
// UID and Email are immutable once set; a session missing either is not authenticated.
type UserSession struct {
	Name  string
	Email string
	UID   string
	Extra map[string]any

	// Restored marks a session loaded from the local cache without a live provider identity.
	Restored bool
}

// Authenticated reports whether both uid and email are present.
func (s *UserSession) Authenticated() bool {
	return s != nil && s.UID != "" && s.Email != ""
}

// Clone returns a deep-enough copy that callers can mutate freely.
func (s *UserSession) Clone() *UserSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Extra = maps.Clone(s.Extra)
	return &c
}

// Merge overlays backend user fields onto the session.
//
// name replaces the current name when non-empty. uid and email fill only empty slots.
// Every other key lands in Extra.
func (s *UserSession) Merge(fields map[string]any) *UserSession {
	out := s.Clone()
	if out == nil {
		out = &UserSession{}
	}
	for k, v := range fields {
		str, _ := v.(string)
		switch k {
		case "name":
			if str != "" {
				out.Name = str
			}
		case "email":
			if out.Email == "" {
				out.Email = str
			}
		case "uid":
			if out.UID == "" {
				out.UID = str
			}
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]any)
			}
			out.Extra[k] = v
		}
	}
	return out
}

// MarshalJSON flattens Extra next to name/email/uid, matching the backend's user object.
func (s UserSession) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(s.Extra)+3)
	maps.Copy(flat, s.Extra)
	flat["name"] = s.Name
	flat["email"] = s.Email
	flat["uid"] = s.UID
	return json.Marshal(flat)
}

// UnmarshalJSON is the inverse of [UserSession.MarshalJSON].
func (s *UserSession) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*s = *(&UserSession{}).Merge(flat)
	return nil
}
