package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type rowKey struct {
	teamID     int64
	externalID string
}

type credKey struct {
	teamID   int64
	provider string
}

type row interface {
	syncedRow() *Synced
}

func (s *Synced) syncedRow() *Synced { return s }

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	now    func() time.Time

	teams     map[int64]*Team
	creds     map[credKey]*Credential
	players   map[rowKey]*Player
	games     map[rowKey]*Game
	gameStats map[rowKey]*GameStatistic
	season    map[rowKey]*PlayerSeasonStats
	career    map[rowKey]*PlayerCareerStats
	videos    map[rowKey]*PlayerVideo
	releases  map[rowKey]*NewsRelease
	logs      []*SyncLog
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		now:       time.Now,
		teams:     make(map[int64]*Team),
		creds:     make(map[credKey]*Credential),
		players:   make(map[rowKey]*Player),
		games:     make(map[rowKey]*Game),
		gameStats: make(map[rowKey]*GameStatistic),
		season:    make(map[rowKey]*PlayerSeasonStats),
		career:    make(map[rowKey]*PlayerCareerStats),
		videos:    make(map[rowKey]*PlayerVideo),
		releases:  make(map[rowKey]*NewsRelease),
	}
}

// AddTeam inserts or replaces a team row.
func (m *Memory) AddTeam(t Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[t.ID] = &t
}

// ---------------------------------------------------------------------------
// Teams
// ---------------------------------------------------------------------------

func (m *Memory) GetTeam(_ context.Context, teamID int64) (*Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) SetTeamProvider(_ context.Context, teamID int64, providerTeamID, seasonID string) error {
	return m.withTeam(teamID, func(t *Team) {
		t.ProviderTeamID = providerTeamID
		t.ProviderSeasonID = seasonID
	})
}

func (m *Memory) TouchTeamSync(_ context.Context, teamID int64, at time.Time) error {
	return m.withTeam(teamID, func(t *Team) { t.LastSyncedAt = &at })
}

func (m *Memory) UpdateTeamRecord(_ context.Context, teamID int64, rec TeamRecord) error {
	return m.withTeam(teamID, func(t *Team) { t.Record = rec })
}

func (m *Memory) withTeam(teamID int64, fn func(*Team)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	fn(t)
	return nil
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

func (m *Memory) GetCredential(_ context.Context, teamID int64, provider string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credKey{teamID, provider}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) SaveCredential(_ context.Context, c *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := credKey{c.TeamID, c.Provider}
	if existing, ok := m.creds[k]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else {
		m.nextID++
		c.ID = m.nextID
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	cp := *c
	m.creds[k] = &cp
	return nil
}

func (m *Memory) SaveTokens(_ context.Context, teamID int64, provider string, upd TokenUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credKey{teamID, provider}]
	if !ok {
		return ErrNotFound
	}
	now := m.now()
	c.EncryptedAccessToken = upd.EncryptedAccessToken
	c.EncryptedRefreshToken = upd.EncryptedRefreshToken
	expires := upd.AccessExpiresAt
	c.AccessExpiresAt = &expires
	c.RefreshExpiresAt = upd.RefreshExpiresAt
	c.LastRefreshAt = &now
	c.UpdatedAt = now
	return nil
}

func (m *Memory) DeleteCredential(_ context.Context, teamID int64, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := credKey{teamID, provider}
	if _, ok := m.creds[k]; !ok {
		return ErrNotFound
	}
	delete(m.creds, k)
	return nil
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

func (m *Memory) UpsertPlayer(_ context.Context, p *Player) (bool, error) {
	return upsertRow(m, m.players, p, replaceRoster)
}

func (m *Memory) PatchPlayer(_ context.Context, p *Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.players[rowKey{p.TeamID, p.ExternalID}]
	if !ok {
		return ErrNotFound
	}
	patchPlayer(existing, p)
	existing.LastSyncedAt = m.now()
	p.ID, p.LastSyncedAt = existing.ID, existing.LastSyncedAt
	return nil
}

func (m *Memory) FindPlayer(_ context.Context, teamID int64, externalID string) (*Player, error) {
	return findRow(m, m.players, teamID, externalID)
}

func (m *Memory) ListPlayers(_ context.Context, teamID int64) ([]Player, error) {
	return listRows(m, m.players, teamID, nil), nil
}

func (m *Memory) UpsertGame(_ context.Context, g *Game) (bool, error) {
	return upsertRow(m, m.games, g, nil)
}

func (m *Memory) FindGame(_ context.Context, teamID int64, externalID string) (*Game, error) {
	return findRow(m, m.games, teamID, externalID)
}

func (m *Memory) ListGames(_ context.Context, teamID int64, from, to time.Time) ([]Game, error) {
	return listRows(m, m.games, teamID, func(g *Game) bool {
		if from.IsZero() && to.IsZero() {
			return true
		}
		if g.GameDate == nil {
			return false
		}
		if !from.IsZero() && g.GameDate.Before(from) {
			return false
		}
		return to.IsZero() || g.GameDate.Before(to)
	}), nil
}

func (m *Memory) UpsertGameStatistic(_ context.Context, s *GameStatistic) (bool, error) {
	return upsertRow(m, m.gameStats, s, nil)
}

func (m *Memory) UpsertSeasonStats(_ context.Context, s *PlayerSeasonStats) (bool, error) {
	return upsertRow(m, m.season, s, nil)
}

func (m *Memory) UpsertCareerStats(_ context.Context, s *PlayerCareerStats) (bool, error) {
	return upsertRow(m, m.career, s, nil)
}

func (m *Memory) UpsertVideo(_ context.Context, v *PlayerVideo) (bool, error) {
	return upsertRow(m, m.videos, v, nil)
}

func (m *Memory) UpsertNewsRelease(_ context.Context, n *NewsRelease) (bool, error) {
	return upsertRow(m, m.releases, n, nil)
}

// GameStatistics lists a team's stored game stat lines.
func (m *Memory) GameStatistics(teamID int64) []GameStatistic {
	return listRows(m, m.gameStats, teamID, nil)
}

// SeasonStats lists a team's stored season stat rows.
func (m *Memory) SeasonStats(teamID int64) []PlayerSeasonStats {
	return listRows(m, m.season, teamID, nil)
}

// CareerStats lists a team's stored career rows.
func (m *Memory) CareerStats(teamID int64) []PlayerCareerStats {
	return listRows(m, m.career, teamID, nil)
}

// Videos lists a team's stored videos.
func (m *Memory) Videos(teamID int64) []PlayerVideo {
	return listRows(m, m.videos, teamID, nil)
}

// NewsReleases lists a team's stored press releases.
func (m *Memory) NewsReleases(teamID int64) []NewsRelease {
	return listRows(m, m.releases, teamID, nil)
}

func upsertRow[T any, P interface {
	*T
	row
}](m *Memory, rows map[rowKey]*T, in P, merge func(dst, src *T)) (bool, error) {
	s := in.syncedRow()
	if s.ExternalID == "" {
		return false, ErrMissingExternalID
	}
	if s.SourceSystem == "" {
		s.SourceSystem = SourcePresto
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := rowKey{s.TeamID, s.ExternalID}
	if existing, ok := rows[k]; ok {
		id := P(existing).syncedRow().ID
		if merge != nil {
			merge(existing, (*T)(in))
		} else {
			*existing = *(*T)(in)
		}
		es := P(existing).syncedRow()
		es.ID = id
		es.SourceSystem = s.SourceSystem
		es.LastSyncedAt = now
		s.ID = id
		s.LastSyncedAt = now
		return false, nil
	}

	m.nextID++
	s.ID = m.nextID
	s.LastSyncedAt = now
	cp := *(*T)(in)
	rows[k] = &cp
	return true, nil
}

func findRow[T any](m *Memory, rows map[rowKey]*T, teamID int64, externalID string) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := rows[rowKey{teamID, externalID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func listRows[T any, P interface {
	*T
	row
}](m *Memory, rows map[rowKey]*T, teamID int64, keep func(P) bool) []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []T
	for k, r := range rows {
		if k.teamID != teamID {
			continue
		}
		if keep != nil && !keep(P(r)) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return P(&out[i]).syncedRow().ID < P(&out[j]).syncedRow().ID
	})
	return out
}

// replaceRoster takes every roster field from src and keeps stored profile
// fields src leaves empty.
func replaceRoster(dst, src *Player) {
	dst.FirstName, dst.LastName = src.FirstName, src.LastName
	dst.Jersey = src.Jersey
	dst.Position, dst.SecondaryPosition = src.Position, src.SecondaryPosition
	dst.ClassYear, dst.Height, dst.Weight = src.ClassYear, src.Height, src.Weight
	dst.Bats, dst.Throws = src.Bats, src.Throws
	patchProfile(dst, src)
	if src.Status != "" {
		dst.Status = src.Status
	}
}

// patchPlayer keeps stored values for fields src leaves empty.
func patchPlayer(dst, src *Player) {
	setIf(&dst.FirstName, src.FirstName)
	setIf(&dst.LastName, src.LastName)
	setIf(&dst.Jersey, src.Jersey)
	setIf(&dst.Position, src.Position)
	setIf(&dst.SecondaryPosition, src.SecondaryPosition)
	setIf(&dst.ClassYear, src.ClassYear)
	setIf(&dst.Height, src.Height)
	setIf(&dst.Bats, src.Bats)
	setIf(&dst.Throws, src.Throws)
	if src.Weight != nil {
		dst.Weight = src.Weight
	}
	patchProfile(dst, src)
}

func patchProfile(dst, src *Player) {
	setIf(&dst.Hometown, src.Hometown)
	setIf(&dst.HighSchool, src.HighSchool)
	setIf(&dst.PreviousSchool, src.PreviousSchool)
	setIf(&dst.Major, src.Major)
	setIf(&dst.Bio, src.Bio)
	setIf(&dst.PhotoURL, src.PhotoURL)
}

func setIf(d *string, s string) {
	if s != "" {
		*d = s
	}
}

// ---------------------------------------------------------------------------
// Sync logs
// ---------------------------------------------------------------------------

func (m *Memory) CreateSyncLog(_ context.Context, l *SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = SyncRunning
	}
	if l.StartedAt.IsZero() {
		l.StartedAt = m.now()
	}
	cp := *l
	m.logs = append(m.logs, &cp)
	return nil
}

func (m *Memory) FinishSyncLog(_ context.Context, l *SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.logs {
		if stored.ID != l.ID {
			continue
		}
		if stored.CompletedAt != nil {
			return ErrLogFinalized
		}
		if l.CompletedAt == nil {
			now := m.now()
			l.CompletedAt = &now
		}
		*stored = *l
		return nil
	}
	return ErrNotFound
}

func (m *Memory) GetSyncLog(_ context.Context, id uuid.UUID) (*SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.logs {
		if stored.ID == id {
			cp := *stored
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListSyncLogs returns the team's logs, newest first.
func (m *Memory) ListSyncLogs(_ context.Context, teamID int64, limit int) ([]SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SyncLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].TeamID != teamID {
			continue
		}
		out = append(out, *m.logs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Housekeeping
// ---------------------------------------------------------------------------

func (m *Memory) ListLinkedTeams(_ context.Context) ([]Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Team
	for _, t := range m.teams {
		if t.ProviderTeamID != "" {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) AbandonSyncLogs(_ context.Context, cutoff time.Time, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := m.now()
	for _, l := range m.logs {
		if l.CompletedAt != nil || !l.StartedAt.Before(cutoff) {
			continue
		}
		l.Status = SyncFailed
		l.CompletedAt = &now
		l.ErrorMessage = reason
		n++
	}
	return n, nil
}

func (m *Memory) PurgeSyncLogs(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.logs[:0]
	var n int64
	for _, l := range m.logs {
		if l.CompletedAt != nil && l.StartedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	m.logs = kept
	return n, nil
}
