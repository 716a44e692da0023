package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lleo5301/sports2-backend-sub005/internal/config"
	"github.com/lleo5301/sports2-backend-sub005/internal/db"
)

// Postgres is the pgx-backed Store. Lookups use the statements prepared by
// db.New; upserts key on the partial unique (team_id, external_id) indexes.
type Postgres struct {
	pool *db.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps a pool created by db.New.
func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// conflictTarget infers the partial unique index on synced tables.
const conflictTarget = `ON CONFLICT (team_id, external_id) WHERE external_id IS NOT NULL DO UPDATE SET`

// ---------------------------------------------------------------------------
// Teams
// ---------------------------------------------------------------------------

func (p *Postgres) GetTeam(ctx context.Context, teamID int64) (*Team, error) {
	var t Team
	err := p.pool.QueryRow(ctx, db.StmtTeamByID, teamID).Scan(
		&t.ID, &t.Name, &t.ProviderTeamID, &t.ProviderSeasonID, &t.LastSyncedAt,
		&t.Record.Wins, &t.Record.Losses, &t.Record.Ties,
		&t.Record.ConferenceWins, &t.Record.ConferenceLosses, &t.Record.ConferenceTies,
	)
	if err != nil {
		return nil, notFound(err, "get team %d", teamID)
	}
	return &t, nil
}

func (p *Postgres) SetTeamProvider(ctx context.Context, teamID int64, providerTeamID, seasonID string) error {
	return p.execOne(ctx, `
		UPDATE `+config.TeamsTable+` SET
			provider_team_id = NULLIF($2, ''),
			provider_season_id = NULLIF($3, ''),
			updated_at = NOW()
		WHERE id = $1`,
		teamID, providerTeamID, seasonID)
}

func (p *Postgres) TouchTeamSync(ctx context.Context, teamID int64, at time.Time) error {
	return p.execOne(ctx, `UPDATE `+config.TeamsTable+` SET last_synced_at = $2, updated_at = NOW() WHERE id = $1`, teamID, at)
}

func (p *Postgres) UpdateTeamRecord(ctx context.Context, teamID int64, rec TeamRecord) error {
	return p.execOne(ctx, `
		UPDATE `+config.TeamsTable+` SET
			wins = $2, losses = $3, ties = $4,
			conference_wins = $5, conference_losses = $6, conference_ties = $7,
			updated_at = NOW()
		WHERE id = $1`,
		teamID, rec.Wins, rec.Losses, rec.Ties,
		rec.ConferenceWins, rec.ConferenceLosses, rec.ConferenceTies)
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

func (p *Postgres) GetCredential(ctx context.Context, teamID int64, provider string) (*Credential, error) {
	var (
		c   Credential
		cfg []byte
	)
	err := p.pool.QueryRow(ctx, db.StmtCredentialByTeam, teamID, provider).Scan(
		&c.ID, &c.TeamID, &c.Provider, &c.Kind, &c.EncryptedCredentials,
		&c.EncryptedAccessToken, &c.EncryptedRefreshToken, &c.AccessExpiresAt,
		&c.RefreshExpiresAt, &c.LastRefreshAt, &cfg, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "get credential for team %d", teamID)
	}
	if err := unmarshalJSON(cfg, &c.Config); err != nil {
		return nil, fmt.Errorf("decode credential config: %w", err)
	}
	return &c, nil
}

// SaveCredential upserts the single (team, provider) credential. Stored
// tokens are replaced by the incoming values, which clears them on a
// settings change.
func (p *Postgres) SaveCredential(ctx context.Context, c *Credential) error {
	cfg, err := marshalJSON(c.Config, "{}")
	if err != nil {
		return err
	}
	return p.pool.QueryRow(ctx, `
		INSERT INTO `+config.CredentialsTable+` (
			team_id, provider, kind, encrypted_credentials,
			encrypted_access_token, encrypted_refresh_token,
			access_expires_at, refresh_expires_at, config
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (team_id, provider) DO UPDATE SET
			kind = EXCLUDED.kind,
			encrypted_credentials = EXCLUDED.encrypted_credentials,
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
			access_expires_at = EXCLUDED.access_expires_at,
			refresh_expires_at = EXCLUDED.refresh_expires_at,
			config = EXCLUDED.config,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		c.TeamID, c.Provider, c.Kind, c.EncryptedCredentials,
		c.EncryptedAccessToken, c.EncryptedRefreshToken,
		c.AccessExpiresAt, c.RefreshExpiresAt, cfg,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (p *Postgres) SaveTokens(ctx context.Context, teamID int64, provider string, upd TokenUpdate) error {
	return p.execOne(ctx, `
		UPDATE `+config.CredentialsTable+` SET
			encrypted_access_token = $3,
			encrypted_refresh_token = $4,
			access_expires_at = $5,
			refresh_expires_at = $6,
			last_refresh_at = NOW(),
			updated_at = NOW()
		WHERE team_id = $1 AND provider = $2`,
		teamID, provider, upd.EncryptedAccessToken, upd.EncryptedRefreshToken,
		upd.AccessExpiresAt, upd.RefreshExpiresAt)
}

func (p *Postgres) DeleteCredential(ctx context.Context, teamID int64, provider string) error {
	return p.execOne(ctx, `DELETE FROM `+config.CredentialsTable+` WHERE team_id = $1 AND provider = $2`, teamID, provider)
}

// ---------------------------------------------------------------------------
// Players
// ---------------------------------------------------------------------------

// UpsertPlayer writes a roster row. Roster columns take the incoming value
// even when it is empty; profile columns (hometown through photo_url) keep
// their stored value unless the row carries one, since PatchPlayer fills them.
func (p *Postgres) UpsertPlayer(ctx context.Context, pl *Player) (bool, error) {
	if pl.ExternalID == "" {
		return false, ErrMissingExternalID
	}
	t := config.PlayersTable
	var inserted bool
	err := p.pool.QueryRow(ctx, `
		INSERT INTO `+t+` (
			team_id, external_id, source_system, first_name, last_name, jersey,
			position, secondary_position, class_year, height, weight, bats, throws,
			hometown, high_school, previous_school, major, bio, photo_url, status,
			last_synced_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,
			COALESCE($20, 'active'), NOW())
		`+conflictTarget+`
			source_system = EXCLUDED.source_system,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			jersey = EXCLUDED.jersey,
			position = EXCLUDED.position,
			secondary_position = EXCLUDED.secondary_position,
			class_year = EXCLUDED.class_year,
			height = EXCLUDED.height,
			weight = EXCLUDED.weight,
			bats = EXCLUDED.bats,
			throws = EXCLUDED.throws,
			hometown = COALESCE(EXCLUDED.hometown, `+t+`.hometown),
			high_school = COALESCE(EXCLUDED.high_school, `+t+`.high_school),
			previous_school = COALESCE(EXCLUDED.previous_school, `+t+`.previous_school),
			major = COALESCE(EXCLUDED.major, `+t+`.major),
			bio = COALESCE(EXCLUDED.bio, `+t+`.bio),
			photo_url = COALESCE(EXCLUDED.photo_url, `+t+`.photo_url),
			status = CASE WHEN $20::text IS NULL THEN `+t+`.status ELSE EXCLUDED.status END,
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING id, last_synced_at, (xmax = 0)`,
		pl.TeamID, pl.ExternalID, sourceOf(pl.SourceSystem), nilEmpty(pl.FirstName),
		nilEmpty(pl.LastName), nilEmpty(pl.Jersey), nilEmpty(pl.Position),
		nilEmpty(pl.SecondaryPosition), nilEmpty(pl.ClassYear), nilEmpty(pl.Height),
		pl.Weight, nilEmpty(pl.Bats), nilEmpty(pl.Throws), nilEmpty(pl.Hometown),
		nilEmpty(pl.HighSchool), nilEmpty(pl.PreviousSchool), nilEmpty(pl.Major),
		nilEmpty(pl.Bio), nilEmpty(pl.PhotoURL), nilEmpty(pl.Status),
	).Scan(&pl.ID, &pl.LastSyncedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert player %s: %w", pl.ExternalID, err)
	}
	return inserted, nil
}

// PatchPlayer updates only the columns the row carries. It never creates a
// player; an unknown external id is ErrNotFound.
func (p *Postgres) PatchPlayer(ctx context.Context, pl *Player) error {
	t := config.PlayersTable
	err := p.pool.QueryRow(ctx, `
		UPDATE `+t+` SET
			first_name = COALESCE($3, first_name),
			last_name = COALESCE($4, last_name),
			jersey = COALESCE($5, jersey),
			position = COALESCE($6, position),
			secondary_position = COALESCE($7, secondary_position),
			class_year = COALESCE($8, class_year),
			height = COALESCE($9, height),
			weight = COALESCE($10, weight),
			bats = COALESCE($11, bats),
			throws = COALESCE($12, throws),
			hometown = COALESCE($13, hometown),
			high_school = COALESCE($14, high_school),
			previous_school = COALESCE($15, previous_school),
			major = COALESCE($16, major),
			bio = COALESCE($17, bio),
			photo_url = COALESCE($18, photo_url),
			last_synced_at = NOW(),
			updated_at = NOW()
		WHERE team_id = $1 AND external_id = $2
		RETURNING id, last_synced_at`,
		pl.TeamID, pl.ExternalID, nilEmpty(pl.FirstName), nilEmpty(pl.LastName),
		nilEmpty(pl.Jersey), nilEmpty(pl.Position), nilEmpty(pl.SecondaryPosition),
		nilEmpty(pl.ClassYear), nilEmpty(pl.Height), pl.Weight, nilEmpty(pl.Bats),
		nilEmpty(pl.Throws), nilEmpty(pl.Hometown), nilEmpty(pl.HighSchool),
		nilEmpty(pl.PreviousSchool), nilEmpty(pl.Major), nilEmpty(pl.Bio), nilEmpty(pl.PhotoURL),
	).Scan(&pl.ID, &pl.LastSyncedAt)
	if err != nil {
		return notFound(err, "patch player %s", pl.ExternalID)
	}
	return nil
}

func (p *Postgres) FindPlayer(ctx context.Context, teamID int64, externalID string) (*Player, error) {
	pl, err := scanPlayer(p.pool.QueryRow(ctx, db.StmtPlayerByExternalID, teamID, externalID))
	if err != nil {
		return nil, notFound(err, "find player %s", externalID)
	}
	return pl, nil
}

func (p *Postgres) ListPlayers(ctx context.Context, teamID int64) ([]Player, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+db.PlayerColumns+` FROM `+config.PlayersTable+`
		WHERE team_id = $1 AND external_id IS NOT NULL
		ORDER BY id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var out []Player
	for rows.Next() {
		pl, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, *pl)
	}
	return out, rows.Err()
}

func scanPlayer(row pgx.Row) (*Player, error) {
	var pl Player
	err := row.Scan(
		&pl.ID, &pl.TeamID, &pl.ExternalID, &pl.SourceSystem, &pl.LastSyncedAt,
		&pl.FirstName, &pl.LastName, &pl.Jersey, &pl.Position, &pl.SecondaryPosition,
		&pl.ClassYear, &pl.Height, &pl.Weight, &pl.Bats, &pl.Throws, &pl.Hometown,
		&pl.HighSchool, &pl.PreviousSchool, &pl.Major, &pl.Bio, &pl.PhotoURL, &pl.Status,
	)
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

// ---------------------------------------------------------------------------
// Games
// ---------------------------------------------------------------------------

func (p *Postgres) UpsertGame(ctx context.Context, g *Game) (bool, error) {
	if g.ExternalID == "" {
		return false, ErrMissingExternalID
	}
	var inserted bool
	err := p.pool.QueryRow(ctx, `
		INSERT INTO `+config.GamesTable+` (
			team_id, external_id, source_system, opponent, home_away, game_date,
			game_time, location, venue, status, team_score, opponent_score, result,
			is_conference, inning, last_synced_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15, NOW())
		`+conflictTarget+`
			source_system = EXCLUDED.source_system,
			opponent = EXCLUDED.opponent,
			home_away = EXCLUDED.home_away,
			game_date = EXCLUDED.game_date,
			game_time = EXCLUDED.game_time,
			location = EXCLUDED.location,
			venue = EXCLUDED.venue,
			status = EXCLUDED.status,
			team_score = EXCLUDED.team_score,
			opponent_score = EXCLUDED.opponent_score,
			result = EXCLUDED.result,
			is_conference = EXCLUDED.is_conference,
			inning = EXCLUDED.inning,
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING id, last_synced_at, (xmax = 0)`,
		g.TeamID, g.ExternalID, sourceOf(g.SourceSystem), g.Opponent, g.HomeAway,
		g.GameDate, nilEmpty(g.GameTime), nilEmpty(g.Location), nilEmpty(g.Venue),
		g.Status, g.TeamScore, g.OpponentScore, g.Result, g.IsConference, nilEmpty(g.Inning),
	).Scan(&g.ID, &g.LastSyncedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert game %s: %w", g.ExternalID, err)
	}
	return inserted, nil
}

func (p *Postgres) FindGame(ctx context.Context, teamID int64, externalID string) (*Game, error) {
	g, err := scanGame(p.pool.QueryRow(ctx, db.StmtGameByExternalID, teamID, externalID))
	if err != nil {
		return nil, notFound(err, "find game %s", externalID)
	}
	return g, nil
}

func (p *Postgres) ListGames(ctx context.Context, teamID int64, from, to time.Time) ([]Game, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+db.GameColumns+` FROM `+config.GamesTable+`
		WHERE team_id = $1 AND external_id IS NOT NULL
		  AND ($2::timestamptz IS NULL OR game_date >= $2)
		  AND ($3::timestamptz IS NULL OR game_date < $3)
		ORDER BY game_date NULLS LAST, id`,
		teamID, timeOrNil(from), timeOrNil(to))
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func scanGame(row pgx.Row) (*Game, error) {
	var g Game
	err := row.Scan(
		&g.ID, &g.TeamID, &g.ExternalID, &g.SourceSystem, &g.LastSyncedAt,
		&g.Opponent, &g.HomeAway, &g.GameDate, &g.GameTime, &g.Location, &g.Venue,
		&g.Status, &g.TeamScore, &g.OpponentScore, &g.Result, &g.IsConference, &g.Inning,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ---------------------------------------------------------------------------
// Stat rows and media
// ---------------------------------------------------------------------------

func (p *Postgres) UpsertGameStatistic(ctx context.Context, s *GameStatistic) (bool, error) {
	if s.ExternalID == "" {
		return false, ErrMissingExternalID
	}
	line, err := marshalJSON(s.Stats, "{}")
	if err != nil {
		return false, err
	}
	return p.upsert(ctx, &s.Synced, `
		INSERT INTO `+config.GameStatisticsTable+` (
			team_id, external_id, source_system, game_id, player_id, position, stats, last_synced_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7, NOW())
		`+conflictTarget+`
			source_system = EXCLUDED.source_system,
			game_id = EXCLUDED.game_id,
			player_id = EXCLUDED.player_id,
			position = EXCLUDED.position,
			stats = EXCLUDED.stats,
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING id, last_synced_at, (xmax = 0)`,
		s.TeamID, s.ExternalID, sourceOf(s.SourceSystem), s.GameID, s.PlayerID,
		nilEmpty(s.Position), line)
}

func (p *Postgres) UpsertSeasonStats(ctx context.Context, s *PlayerSeasonStats) (bool, error) {
	if s.ExternalID == "" {
		return false, ErrMissingExternalID
	}
	line, err := marshalJSON(s.Stats, "{}")
	if err != nil {
		return false, err
	}
	splits, err := marshalJSON(s.Splits, "{}")
	if err != nil {
		return false, err
	}
	return p.upsert(ctx, &s.Synced, `
		INSERT INTO `+config.PlayerSeasonStatsTable+` (
			team_id, external_id, source_system, player_id, season, stats, splits, last_synced_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7, NOW())
		`+conflictTarget+`
			source_system = EXCLUDED.source_system,
			player_id = EXCLUDED.player_id,
			season = EXCLUDED.season,
			stats = EXCLUDED.stats,
			splits = EXCLUDED.splits,
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING id, last_synced_at, (xmax = 0)`,
		s.TeamID, s.ExternalID, sourceOf(s.SourceSystem), s.PlayerID, s.Season, line, splits)
}

func (p *Postgres) UpsertCareerStats(ctx context.Context, s *PlayerCareerStats) (bool, error) {
	if s.ExternalID == "" {
		return false, ErrMissingExternalID
	}
	line, err := marshalJSON(s.Stats, "{}")
	if err != nil {
		return false, err
	}
	return p.upsert(ctx, &s.Synced, `
		INSERT INTO `+config.PlayerCareerStatsTable+` (
			team_id, external_id, source_system, player_id, seasons_played, stats, last_synced_at
		) VALUES ($1,$2,$3,$4,$5,$6, NOW())
		`+conflictTarget+`
			source_system = EXCLUDED.source_system,
			player_id = EXCLUDED.player_id,
			seasons_played = EXCLUDED.seasons_played,
			stats = EXCLUDED.stats,
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING id, last_synced_at, (xmax = 0)`,
		s.TeamID, s.ExternalID, sourceOf(s.SourceSystem), s.PlayerID, s.SeasonsPlayed, line)
}

func (p *Postgres) UpsertVideo(ctx context.Context, v *PlayerVideo) (bool, error) {
	if v.ExternalID == "" {
		return false, ErrMissingExternalID
	}
	return p.upsert(ctx, &v.Synced, `
		INSERT INTO `+config.PlayerVideosTable+` (
			team_id, external_id, source_system, player_id, title, description, url,
			thumbnail_url, duration_secs, published_at, last_synced_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())
		`+conflictTarget+`
			source_system = EXCLUDED.source_system,
			player_id = EXCLUDED.player_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			url = EXCLUDED.url,
			thumbnail_url = EXCLUDED.thumbnail_url,
			duration_secs = EXCLUDED.duration_secs,
			published_at = EXCLUDED.published_at,
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING id, last_synced_at, (xmax = 0)`,
		v.TeamID, v.ExternalID, sourceOf(v.SourceSystem), v.PlayerID, v.Title,
		nilEmpty(v.Description), v.URL, nilEmpty(v.ThumbnailURL), v.DurationSecs, v.PublishedAt)
}

func (p *Postgres) UpsertNewsRelease(ctx context.Context, n *NewsRelease) (bool, error) {
	if n.ExternalID == "" {
		return false, ErrMissingExternalID
	}
	return p.upsert(ctx, &n.Synced, `
		INSERT INTO `+config.NewsReleasesTable+` (
			team_id, external_id, source_system, title, summary, content, url,
			image_url, author, category, published_at, last_synced_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, NOW())
		`+conflictTarget+`
			source_system = EXCLUDED.source_system,
			title = EXCLUDED.title,
			summary = EXCLUDED.summary,
			content = EXCLUDED.content,
			url = EXCLUDED.url,
			image_url = EXCLUDED.image_url,
			author = EXCLUDED.author,
			category = EXCLUDED.category,
			published_at = EXCLUDED.published_at,
			last_synced_at = NOW(),
			updated_at = NOW()
		RETURNING id, last_synced_at, (xmax = 0)`,
		n.TeamID, n.ExternalID, sourceOf(n.SourceSystem), n.Title, nilEmpty(n.Summary),
		nilEmpty(n.Content), nilEmpty(n.URL), nilEmpty(n.ImageURL), nilEmpty(n.Author),
		nilEmpty(n.Category), n.PublishedAt)
}

// upsert runs an INSERT ... RETURNING id, last_synced_at, (xmax = 0) and
// writes the identity back into s.
func (p *Postgres) upsert(ctx context.Context, s *Synced, sql string, args ...any) (bool, error) {
	var inserted bool
	if err := p.pool.QueryRow(ctx, sql, args...).Scan(&s.ID, &s.LastSyncedAt, &inserted); err != nil {
		return false, fmt.Errorf("upsert %s: %w", s.ExternalID, err)
	}
	return inserted, nil
}

// ---------------------------------------------------------------------------
// Sync logs
// ---------------------------------------------------------------------------

func (p *Postgres) CreateSyncLog(ctx context.Context, l *SyncLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = SyncRunning
	}
	if l.StartedAt.IsZero() {
		l.StartedAt = time.Now().UTC()
	}
	cfg, err := marshalJSON(l.Config, "{}")
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO `+config.SyncLogsTable+` (
			id, team_id, sync_type, provider, endpoint, initiated_by, status, config, started_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		l.ID, l.TeamID, l.SyncType, l.Provider, nilEmpty(l.Endpoint),
		nilEmpty(l.InitiatedBy), l.Status, cfg, l.StartedAt)
	if err != nil {
		return fmt.Errorf("create sync log: %w", err)
	}
	return nil
}

// FinishSyncLog writes the final state once. The completed_at guard makes
// a finalized row immutable.
func (p *Postgres) FinishSyncLog(ctx context.Context, l *SyncLog) error {
	if l.CompletedAt == nil {
		now := time.Now().UTC()
		l.CompletedAt = &now
	}
	summary, err := marshalJSON(l.Summary, "{}")
	if err != nil {
		return err
	}
	errs, err := marshalJSON(l.Errors, "[]")
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE `+config.SyncLogsTable+` SET
			status = $2, completed_at = $3,
			items_created = $4, items_updated = $5, items_failed = $6,
			summary = $7, errors = $8, error_message = $9
		WHERE id = $1 AND completed_at IS NULL`,
		l.ID, l.Status, l.CompletedAt, l.Created, l.Updated, l.Failed,
		summary, errs, nilEmpty(l.ErrorMessage))
	if err != nil {
		return fmt.Errorf("finish sync log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := p.GetSyncLog(ctx, l.ID); err != nil {
			return err
		}
		return ErrLogFinalized
	}
	return nil
}

func (p *Postgres) GetSyncLog(ctx context.Context, id uuid.UUID) (*SyncLog, error) {
	l, err := scanSyncLog(p.pool.QueryRow(ctx, db.StmtSyncLogByID, id))
	if err != nil {
		return nil, notFound(err, "get sync log %s", id)
	}
	return l, nil
}

func (p *Postgres) ListSyncLogs(ctx context.Context, teamID int64, limit int) ([]SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT `+db.SyncLogColumns+` FROM `+config.SyncLogsTable+`
		WHERE team_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}
	defer rows.Close()

	var out []SyncLog
	for rows.Next() {
		l, err := scanSyncLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanSyncLog(row pgx.Row) (*SyncLog, error) {
	var (
		l                  SyncLog
		cfg, summary, errs []byte
	)
	err := row.Scan(
		&l.ID, &l.TeamID, &l.SyncType, &l.Provider, &l.Endpoint, &l.InitiatedBy,
		&l.Status, &cfg, &l.StartedAt, &l.CompletedAt, &l.Created, &l.Updated,
		&l.Failed, &summary, &errs, &l.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(cfg, &l.Config); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(summary, &l.Summary); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(errs, &l.Errors); err != nil {
		return nil, err
	}
	return &l, nil
}

// ---------------------------------------------------------------------------
// Housekeeping
// ---------------------------------------------------------------------------

func (p *Postgres) ListLinkedTeams(ctx context.Context) ([]Team, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+db.TeamColumns+` FROM `+config.TeamsTable+`
		WHERE provider_team_id IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list linked teams: %w", err)
	}
	defer rows.Close()

	var out []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(
			&t.ID, &t.Name, &t.ProviderTeamID, &t.ProviderSeasonID, &t.LastSyncedAt,
			&t.Record.Wins, &t.Record.Losses, &t.Record.Ties,
			&t.Record.ConferenceWins, &t.Record.ConferenceLosses, &t.Record.ConferenceTies,
		); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) AbandonSyncLogs(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE `+config.SyncLogsTable+` SET
			status = 'failed', completed_at = NOW(), error_message = $2
		WHERE completed_at IS NULL AND started_at < $1`, cutoff, reason)
	if err != nil {
		return 0, fmt.Errorf("abandon sync logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) PurgeSyncLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM `+config.SyncLogsTable+`
		WHERE completed_at IS NOT NULL AND started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sync logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (p *Postgres) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func nilEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sourceOf(s string) string {
	if s == "" {
		return SourcePresto
	}
	return s
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func marshalJSON(v any, empty string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	if string(b) == "null" {
		return []byte(empty), nil
	}
	return b, nil
}

func unmarshalJSON(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
