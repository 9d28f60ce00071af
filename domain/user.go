package domain

import "time"

// NameColorRainbow is the sentinel value accepted in place of a hex color.
const NameColorRainbow = "rainbow"

// User is the profile projection resolved by the identity directory.
// The password hash never leaves the repository layer.
type User struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	Avatar      string
	Bio         string
	NameColor   string
	CreatedAt   time.Time
	LastSeen    time.Time
}
