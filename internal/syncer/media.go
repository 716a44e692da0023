package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

var (
	videoID        = provider.F("id", "videoId", "video_id", "mediaId")
	videoTitle     = provider.F("title", "name", "caption")
	videoDesc      = provider.F("description", "summary")
	videoURL       = provider.F("url", "videoUrl", "embedUrl", "src", "link")
	videoThumbnail = provider.F("thumbnailUrl", "thumbnail", "poster", "image")
	videoDuration  = provider.F("durationSeconds", "duration", "length")
	videoPublished = provider.F("publishedAt", "published", "date", "createdAt")

	releaseID        = provider.F("id", "releaseId", "articleId", "storyId")
	releaseTitle     = provider.F("title", "headline", "name")
	releaseSummary   = provider.F("summary", "teaser", "description", "abstract")
	releaseContent   = provider.F("content", "body", "text", "html")
	releaseURL       = provider.F("url", "link", "permalink")
	releaseImage     = provider.F("imageUrl", "image.url", "image", "thumbnail")
	releaseAuthor    = provider.F("author.name", "author", "byline")
	releaseCategory  = provider.F("category", "type", "section")
	releasePublished = provider.F("publishedAt", "releaseDate", "date", "pubDate")
)

// SyncVideos upserts every synced player's videos.
func (s *Service) SyncVideos(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncVideos(ctx, teamID, userID)
	})
}

func (s *Service) syncVideos(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeVideos, "/v2/players/{playerId}/videos", seasonIsOptional,
		func(ctx context.Context, r *run) error {
			players, err := r.syncedPlayers(ctx)
			if err != nil {
				return err
			}

			return fold(ctx, r.res, "player_videos", players, playerIdent, func(ctx context.Context, p store.Player) (outcome, error) {
				videos, err := fetch(ctx, r, func(token string) ([]presto.Item, error) {
					return s.api.Videos(ctx, token, p.ExternalID)
				})
				if transport.IsNotFound(err) || (err == nil && len(videos) == 0) {
					return outcomeSkipped, nil
				}
				if err != nil {
					return outcomeNone, fmt.Errorf("fetch videos: %w", err)
				}

				return outcomeNone, fold(ctx, r.res, "video", videos, videoIdent, func(ctx context.Context, item presto.Item) (outcome, error) {
					v, err := s.mapVideo(r.team.ID, p.ID, item)
					if err != nil {
						return outcomeNone, err
					}
					created, err := s.store.UpsertVideo(ctx, v)
					if err != nil {
						return outcomeNone, fmt.Errorf("upsert video: %w", err)
					}
					return upserted(created), nil
				})
			})
		})
}

func videoIdent(item presto.Item) (string, string) {
	return videoID.String(item), videoTitle.String(item)
}

func (s *Service) mapVideo(teamID, playerID int64, item presto.Item) (*store.PlayerVideo, error) {
	id := videoID.String(item)
	if id == "" {
		return nil, mappingErr("video has no id")
	}
	u := videoURL.String(item)
	if u == "" {
		return nil, mappingErr("video " + id + " has no url")
	}
	return &store.PlayerVideo{
		Synced:       store.Synced{TeamID: teamID, ExternalID: id, SourceSystem: store.SourcePresto},
		PlayerID:     playerID,
		Title:        videoTitle.String(item),
		Description:  videoDesc.String(item),
		URL:          u,
		ThumbnailURL: videoThumbnail.String(item),
		DurationSecs: videoDuration.IntPtr(item),
		PublishedAt:  s.timePtr(videoPublished.String(item)),
	}, nil
}

// SyncPressReleases upserts the team's press releases.
func (s *Service) SyncPressReleases(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncPressReleases(ctx, teamID, userID)
	})
}

func (s *Service) syncPressReleases(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeReleases, "/v2/teams/{teamId}/releases", seasonIsOptional,
		func(ctx context.Context, r *run) error {
			items, err := fetch(ctx, r, func(token string) ([]presto.Item, error) {
				return s.api.Releases(ctx, token, r.providerTeamID)
			})
			if transport.IsNotFound(err) {
				r.summary["fetched"] = 0
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch releases: %w", err)
			}
			r.summary["fetched"] = len(items)

			return fold(ctx, r.res, "news_release", items, releaseIdent, func(ctx context.Context, item presto.Item) (outcome, error) {
				id := releaseID.String(item)
				if id == "" {
					return outcomeNone, mappingErr("release has no id")
				}
				title := releaseTitle.String(item)
				if title == "" {
					return outcomeNone, mappingErr("release " + id + " has no title")
				}
				created, err := s.store.UpsertNewsRelease(ctx, &store.NewsRelease{
					Synced:      store.Synced{TeamID: r.team.ID, ExternalID: id, SourceSystem: store.SourcePresto},
					Title:       title,
					Summary:     releaseSummary.String(item),
					Content:     releaseContent.String(item),
					URL:         releaseURL.String(item),
					ImageURL:    releaseImage.String(item),
					Author:      releaseAuthor.String(item),
					Category:    releaseCategory.String(item),
					PublishedAt: s.timePtr(releasePublished.String(item)),
				})
				if err != nil {
					return outcomeNone, fmt.Errorf("upsert release: %w", err)
				}
				return upserted(created), nil
			})
		})
}

func releaseIdent(item presto.Item) (string, string) {
	return releaseID.String(item), releaseTitle.String(item)
}

func (s *Service) timePtr(raw string) *time.Time {
	t, ok := parseDate(raw, s.loc)
	if !ok {
		return nil
	}
	return &t
}
