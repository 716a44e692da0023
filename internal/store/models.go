package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/lleo5301/sports2-backend-sub005/internal/stats"
)

// SourcePresto tags rows written by the provider sync.
const SourcePresto = "presto"

// Team is the local team row. Provider ids are empty until configured.
type Team struct {
	ID               int64
	Name             string
	ProviderTeamID   string
	ProviderSeasonID string
	LastSyncedAt     *time.Time
	Record           TeamRecord
}

// TeamRecord is the denormalized win-loss record.
type TeamRecord struct {
	Wins             int `json:"wins"`
	Losses           int `json:"losses"`
	Ties             int `json:"ties"`
	ConferenceWins   int `json:"conferenceWins"`
	ConferenceLosses int `json:"conferenceLosses"`
	ConferenceTies   int `json:"conferenceTies"`
}

// Credential is the per (team, provider) secret bundle. Secret fields hold
// ciphertext.
type Credential struct {
	ID                    int64
	TeamID                int64
	Provider              string
	Kind                  string // "basic" or "api_key"
	EncryptedCredentials  []byte
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	AccessExpiresAt       *time.Time
	RefreshExpiresAt      *time.Time
	LastRefreshAt         *time.Time
	Config                map[string]string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Credential kinds.
const (
	CredentialBasic  = "basic"
	CredentialAPIKey = "api_key"
)

// TokenUpdate replaces a credential's stored token pair.
type TokenUpdate struct {
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	AccessExpiresAt       time.Time
	RefreshExpiresAt      *time.Time
}

// Synced carries the fields every synced entity shares. Rows with an empty
// ExternalID are local-only and never touched by sync.
type Synced struct {
	ID           int64
	TeamID       int64
	ExternalID   string
	SourceSystem string
	LastSyncedAt time.Time
}

// Player is a roster entry. Empty strings mean "not supplied" on upsert and
// keep the stored value.
type Player struct {
	Synced
	FirstName         string
	LastName          string
	Jersey            string
	Position          string
	SecondaryPosition string
	ClassYear         string
	Height            string
	Weight            *int
	Bats              string
	Throws            string
	Hometown          string
	HighSchool        string
	PreviousSchool    string
	Major             string
	Bio               string
	PhotoURL          string
	Status            string
}

// FullName joins first and last name.
func (p *Player) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Game statuses.
const (
	GameScheduled  = "scheduled"
	GameInProgress = "in_progress"
	GameCompleted  = "completed"
	GamePostponed  = "postponed"
	GameCancelled  = "cancelled"
)

// Game is a schedule entry from the team's point of view.
type Game struct {
	Synced
	Opponent      string
	HomeAway      string // home, away, neutral
	GameDate      *time.Time
	GameTime      string
	Location      string
	Venue         string
	Status        string
	TeamScore     *int
	OpponentScore *int
	Result        *string // W, L, T; set once completed
	IsConference  bool
	Inning        string
}

// GameStatistic is one player's line for one game.
// ExternalID is "{eventId}-{playerId}".
type GameStatistic struct {
	Synced
	GameID   int64
	PlayerID int64
	Position string
	Stats    stats.Line
}

// PlayerSeasonStats is one player's season line plus split breakdowns.
// ExternalID is "{playerId}-{seasonId}".
type PlayerSeasonStats struct {
	Synced
	PlayerID int64
	Season   string
	Stats    stats.Line
	Splits   map[string]any
}

// PlayerCareerStats is the aggregate across every season.
// ExternalID is the player's provider id.
type PlayerCareerStats struct {
	Synced
	PlayerID      int64
	SeasonsPlayed int
	Stats         stats.Line
}

// PlayerVideo is a provider-hosted video clip.
type PlayerVideo struct {
	Synced
	PlayerID     int64
	Title        string
	Description  string
	URL          string
	ThumbnailURL string
	DurationSecs *int
	PublishedAt  *time.Time
}

// NewsRelease is a team press release.
type NewsRelease struct {
	Synced
	Title       string
	Summary     string
	Content     string
	URL         string
	ImageURL    string
	Author      string
	Category    string
	PublishedAt *time.Time
}

// Sync log statuses.
const (
	SyncRunning   = "running"
	SyncCompleted = "completed"
	SyncPartial   = "partial"
	SyncFailed    = "failed"
)

// ItemError records why one upstream item could not be synced.
type ItemError struct {
	ItemID     string `json:"itemId"`
	EntityType string `json:"entityType"`
	Name       string `json:"name,omitempty"`
	Message    string `json:"message"`
}

// SyncLog is the audit row for one sync invocation.
type SyncLog struct {
	ID           uuid.UUID         `json:"id"`
	TeamID       int64             `json:"teamId"`
	SyncType     string            `json:"syncType"`
	Provider     string            `json:"provider"`
	Endpoint     string            `json:"endpoint,omitempty"`
	InitiatedBy  string            `json:"initiatedBy,omitempty"`
	Status       string            `json:"status"`
	Config       map[string]string `json:"config,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	Created      int               `json:"created"`
	Updated      int               `json:"updated"`
	Failed       int               `json:"failed"`
	Summary      map[string]any    `json:"summary,omitempty"`
	Errors       []ItemError       `json:"errors"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}
