package broadcast

import (
	"time"

	"github.com/sermoncast/sermoncast/internal/shared"
)

type Church struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	DefaultLanguage string    `gorm:"not null;default:en" json:"default_language"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Broadcast is one live-sermon streaming session.
type Broadcast struct {
	ID                string                 `gorm:"primaryKey" json:"id"`
	ChurchID          string                 `gorm:"not null;index" json:"church_id"`
	SourceLanguage    string                 `gorm:"not null" json:"source_language"`
	BroadcasterGender shared.Gender          `json:"broadcaster_gender,omitempty"`
	Status            shared.BroadcastStatus `gorm:"not null;index" json:"status"`
	StartedAt         time.Time              `json:"started_at"`
	EndedAt           *time.Time             `json:"ended_at,omitempty"`
}

// Event is one server-push message on a translation stream.
type Event struct {
	Keepalive   bool   `json:"keepalive,omitempty"`
	BroadcastID string `json:"broadcast_id,omitempty"`
	Translation string `json:"translation,omitempty"`
}

// Registration records one connected client against a broadcast.
type Registration struct {
	ClientID    string      `json:"clientId"`
	Role        shared.Role `json:"role"`
	BroadcastID string      `json:"broadcastId"`
	ChurchID    string      `json:"churchId"`
	StartedAt   time.Time   `json:"startedAt"`
}
