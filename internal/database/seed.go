// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/logging"
	"github.com/tomtom215/personafeed/internal/models"
)

// DemoUserID owns the seeded recommendations and follows.
const DemoUserID = "demo-user"

var seedCategories = []string{"education", "entertainment", "fitness", "music", "productivity", "wellness"}

// SeedMockData fills an empty catalog with a small deterministic data set for
// development. It does nothing when personas already exist.
func (db *DB) SeedMockData(ctx context.Context) error {
	var existing int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM personas`).Scan(&existing); err != nil {
		return fmt.Errorf("failed to count personas: %w", err)
	}
	if existing > 0 {
		logging.Debug().Int("personas", existing).Msg("Catalog not empty, skipping seed")
		return nil
	}

	now := time.Now().UTC().Truncate(time.Second)
	const creators = 8
	for c := int64(1); c <= creators; c++ {
		joined := now.Add(-time.Duration(c*c) * 24 * time.Hour)
		if err := db.UpsertCreator(ctx, &models.Creator{
			ID:        c,
			Name:      fmt.Sprintf("Creator %d", c),
			Verified:  c%3 != 0,
			Headline:  fmt.Sprintf("Creator %d published new personas", c),
			CreatedAt: joined,
		}); err != nil {
			return err
		}

		for i := int64(1); i <= 5; i++ {
			id := c*100 + i
			cat := seedCategories[int(id)%len(seedCategories)]
			ratingCount := int((id * 7) % 40)
			rating := 0.0
			if ratingCount > 0 {
				rating = 2.5 + float64((id*13)%25)/10
			}
			p := &models.Persona{
				ID:          id,
				CreatorID:   c,
				Name:        fmt.Sprintf("%s persona %d", cat, id),
				Category:    cat,
				Verified:    id%4 != 0,
				Active:      true,
				Rating:      rating,
				RatingCount: ratingCount,
				CreatedAt:   joined.Add(time.Duration(i) * time.Hour),
				UpdatedAt:   now.Add(-time.Duration(id%48) * time.Hour),
			}
			if err := db.UpsertPersona(ctx, p); err != nil {
				return err
			}
			views := (id * 53) % 5000
			likes := (id * 17) % 400
			subs := (id * 11) % 90
			if err := db.UpsertDiscoveryMetrics(ctx, &models.DiscoveryMetrics{
				PersonaID:        id,
				Views24h:         views,
				Views7d:          views * 6,
				Views30d:         views * 22,
				Likes24h:         likes,
				Likes7d:          likes * 5,
				Likes30d:         likes * 19,
				Subscriptions24h: subs,
				Subscriptions7d:  subs * 4,
				Subscriptions30d: subs * 15,
				TrendingScore:    float64((id*37)%1000) / 10,
				PopularityScore:  float64(views*22) / 1000,
				QualityScore:     float64((id*19)%100) / 100,
				EngagementScore:  float64((id*29)%100) / 10,
				DiscoveryRank:    int(id % 50),
				CategoryRank:     int(id%10) + 1,
				Promoted:         id%11 == 0,
				LastCalculatedAt: now,
			}); err != nil {
				return err
			}
			if ratingCount > 0 {
				if err := db.AddReview(ctx, &models.Review{
					ID:           id,
					PersonaID:    id,
					ReviewerName: fmt.Sprintf("reviewer-%d", id%9),
					Rating:       rating,
					Excerpt:      "Surprisingly good at staying in character.",
					HelpfulCount: int((id * 3) % 60),
					CreatedAt:    now.Add(-time.Duration(id%72) * time.Hour),
				}); err != nil {
					return err
				}
			}
			if id%3 == 0 {
				if err := db.AddRecommendation(ctx, DemoUserID, id, float64((id*41)%100)/100, "similar to your recent chats"); err != nil {
					return err
				}
			}
		}
	}

	for _, c := range []int64{1, 2, 5} {
		if err := db.FollowCreator(ctx, DemoUserID, c, now.Add(-30*24*time.Hour)); err != nil {
			return err
		}
	}

	logging.Info().Int("creators", creators).Int("personas", creators*5).Msg("Seeded mock catalog")
	return nil
}

var _ feed.Store = (*DB)(nil)
