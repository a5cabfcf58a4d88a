package models

// UserRecord is a user profile as stored under users/{uid}. Profiles are
// created by the onboarding flow and mutated by profile updates; they are
// never deleted.
type UserRecord struct {
	UID            string `json:"uid"`
	Email          string `json:"email,omitempty"`
	Username       string `json:"username"`
	FullName       string `json:"fullName,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
	IsOnline       bool   `json:"isOnline"`
	LastSeenAt     int64  `json:"lastSeenAt,omitempty"`
}

// UserFromValue decodes a users/{uid} snapshot value. Returns false when the
// value is missing or not a record.
func UserFromValue(uid string, value any) (*UserRecord, bool) {
	m, ok := asMap(value)
	if !ok {
		return nil, false
	}
	u := &UserRecord{
		UID:            uid,
		Email:          asString(m, "email"),
		Username:       asString(m, "username"),
		FullName:       asString(m, "fullName"),
		ProfilePicture: asString(m, "profilePicture"),
		CreatedAt:      asInt64(m, "createdAt"),
		IsOnline:       asBool(m, "isOnline"),
		LastSeenAt:     asInt64(m, "lastSeenAt"),
	}
	if id := asString(m, "uid"); id != "" {
		u.UID = id
	}
	return u, true
}

// Value encodes the record for a store write.
func (u *UserRecord) Value() map[string]any {
	m := map[string]any{
		"uid":       u.UID,
		"email":     u.Email,
		"username":  u.Username,
		"createdAt": u.CreatedAt,
		"isOnline":  u.IsOnline,
	}
	if u.FullName != "" {
		m["fullName"] = u.FullName
	}
	if u.ProfilePicture != "" {
		m["profilePicture"] = u.ProfilePicture
	}
	if u.LastSeenAt != 0 {
		m["lastSeenAt"] = u.LastSeenAt
	}
	return m
}
