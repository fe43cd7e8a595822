package models

import "time"

// User represents an account in the system
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Location is a device location snapshot taken at capture time
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// AttendanceRecord is a single user's record for one calendar day.
// At most one record exists per (user, day); check-out fields are only
// ever set on a record that already has check-in fields.
type AttendanceRecord struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	CheckInAt         *time.Time `json:"check_in,omitempty"`
	CheckOutAt        *time.Time `json:"check_out,omitempty"`
	CheckInPhotoPath  *string    `json:"check_in_photo,omitempty"`
	CheckOutPhotoPath *string    `json:"check_out_photo,omitempty"`
	CheckInLocation   *Location  `json:"check_in_location,omitempty"`
	CheckOutLocation  *Location  `json:"check_out_location,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Complete reports whether both events of the day have been recorded.
func (r *AttendanceRecord) Complete() bool {
	return r.CheckInAt != nil && r.CheckOutAt != nil
}

// Profile holds user-editable account details. AvatarPath is an object
// storage path, never a URL.
type Profile struct {
	UserID     string    `json:"user_id"`
	Username   *string   `json:"username,omitempty"`
	Website    *string   `json:"website,omitempty"`
	AvatarPath *string   `json:"avatar_url,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PushToken is a registered push delivery token for one device
type PushToken struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"` // "expo" or "apns"
	CreatedAt time.Time `json:"created_at"`
}
