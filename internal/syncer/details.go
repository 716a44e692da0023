package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/lleo5301/sports2-backend-sub005/internal/provider"
	"github.com/lleo5301/sports2-backend-sub005/internal/provider/presto"
	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/transport"
)

// SyncPlayerDetails enriches every synced player with bio detail.
func (s *Service) SyncPlayerDetails(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncPlayerDetails(ctx, teamID, userID)
	})
}

func (s *Service) syncPlayerDetails(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypeDetails, "/v2/players/{playerId}", seasonIsOptional,
		func(ctx context.Context, r *run) error {
			players, err := r.syncedPlayers(ctx)
			if err != nil {
				return err
			}

			return fold(ctx, r.res, "player_detail", players, playerIdent, func(ctx context.Context, p store.Player) (outcome, error) {
				item, err := fetch(ctx, r, func(token string) (presto.Item, error) {
					return s.api.Player(ctx, token, p.ExternalID)
				})
				if transport.IsNotFound(err) {
					return outcomeSkipped, nil
				}
				if err != nil {
					return outcomeNone, fmt.Errorf("fetch player: %w", err)
				}
				if len(item) == 0 {
					return outcomeSkipped, nil
				}

				// Detail payloads often omit the id and the name; the
				// stored row keeps whatever is missing here.
				if playerID.String(item) == "" {
					item["playerId"] = p.ExternalID
				}
				if playerFirstName.String(item) == "" && playerLastName.String(item) == "" &&
					playerFullName.String(item) == "" {
					item["firstName"], item["lastName"] = p.FirstName, p.LastName
				}
				detail, err := mapPlayer(r.team.ID, item)
				if err != nil {
					return outcomeNone, err
				}
				detail.ExternalID = p.ExternalID
				detail.Status = ""

				if err := s.store.PatchPlayer(ctx, detail); err != nil {
					return outcomeNone, fmt.Errorf("patch player: %w", err)
				}
				return outcomeUpdated, nil
			})
		})
}

// ---------------------------------------------------------------------------
// Photos
// ---------------------------------------------------------------------------

var (
	photoURL  = provider.F("url", "src", "imageUrl", "image", "href", "sizes.large", "sizes.original")
	photoType = provider.F("type", "category", "photoType", "role", "tag")
)

// photoPriority ranks photo types; lower wins. Unlisted types rank last.
var photoPriority = []string{"headshot", "profile", "roster", "action"}

// SyncPhotos picks the best photo for every synced player.
func (s *Service) SyncPhotos(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.locked(teamID, func() (*Result, error) {
		return s.syncPhotos(ctx, teamID, userID)
	})
}

func (s *Service) syncPhotos(ctx context.Context, teamID int64, userID string) (*Result, error) {
	return s.execute(ctx, teamID, userID, TypePhotos, "/v2/players/{playerId}/photos", seasonIsOptional,
		func(ctx context.Context, r *run) error {
			players, err := r.syncedPlayers(ctx)
			if err != nil {
				return err
			}

			return fold(ctx, r.res, "player_photo", players, playerIdent, func(ctx context.Context, p store.Player) (outcome, error) {
				photos, err := fetch(ctx, r, func(token string) ([]presto.Item, error) {
					return s.api.Photos(ctx, token, p.ExternalID)
				})
				if transport.IsNotFound(err) {
					return outcomeSkipped, nil
				}
				if err != nil {
					return outcomeNone, fmt.Errorf("fetch photos: %w", err)
				}

				best := selectPhoto(photos)
				if best == "" || best == p.PhotoURL {
					return outcomeSkipped, nil
				}
				if err := s.store.PatchPlayer(ctx, &store.Player{
					Synced:   store.Synced{TeamID: r.team.ID, ExternalID: p.ExternalID, SourceSystem: store.SourcePresto},
					PhotoURL: best,
				}); err != nil {
					return outcomeNone, fmt.Errorf("patch player photo: %w", err)
				}
				return outcomeUpdated, nil
			})
		})
}

// selectPhoto returns the URL of the highest-priority photo, or "".
func selectPhoto(photos []presto.Item) string {
	best, bestRank := "", len(photoPriority)+1
	for _, ph := range photos {
		u := photoURL.String(ph)
		if u == "" {
			continue
		}
		rank := photoRank(photoType.String(ph))
		if rank < bestRank {
			best, bestRank = u, rank
		}
	}
	return best
}

func photoRank(kind string) int {
	kind = strings.ToLower(kind)
	for i, p := range photoPriority {
		if strings.Contains(kind, p) {
			return i
		}
	}
	return len(photoPriority)
}
