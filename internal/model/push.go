package model

import "time"

// PushSubscription is a browser push endpoint registered by a profile.
type PushSubscription struct {
	ID         int64     `json:"id"`
	ProfileID  int64     `json:"profile_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"-"`
	AuthKey    string    `json:"-"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
