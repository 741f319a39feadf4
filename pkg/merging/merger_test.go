package merging

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/thistle/pkg/models"
)

func newTestMerger() *Merger {
	return NewMerger(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestMerger_Merge(t *testing.T) {
	m := newTestMerger()
	ctx := context.Background()

	primary := models.StoredRecord{
		ID: "p",
		ListingFields: models.ListingFields{
			Name:        "Le Cyrano",
			Phone:       "0553123456",
			Gallery:     []string{"a.jpg", "b.jpg"},
			SocialLinks: map[string]string{"instagram": "@cyrano"},
		},
	}
	dup1 := models.StoredRecord{
		ID: "d1",
		ListingFields: models.ListingFields{
			Name:        "Restaurant Le Cyrano",
			Email:       "contact@cyrano.fr",
			Gallery:     []string{"b.jpg", "c.jpg"},
			SocialLinks: map[string]string{"instagram": "@other", "facebook": "cyrano.fb"},
		},
	}
	dup2 := models.StoredRecord{
		ID: "d2",
		ListingFields: models.ListingFields{
			Email:       "other@cyrano.fr",
			Website:     "https://cyrano.fr",
			Gallery:     []string{"d.jpg", "a.jpg"},
			SocialLinks: map[string]string{"facebook": "ignored", "tiktok": "@cyrano"},
		},
	}

	result := m.Merge(ctx, primary, []models.StoredRecord{dup1, dup2})
	merged := result.Merged

	t.Run("primary scalars are kept", func(t *testing.T) {
		assert.Equal(t, "p", merged.ID)
		assert.Equal(t, "Le Cyrano", merged.Name)
		assert.Equal(t, "0553123456", merged.Phone)
	})

	t.Run("empty scalars are filled from the first duplicate with a value", func(t *testing.T) {
		assert.Equal(t, "contact@cyrano.fr", merged.Email)
		assert.Equal(t, "https://cyrano.fr", merged.Website)
		assert.Equal(t, []string{"email", "website", "gallery", "social_links"}, result.FilledFields)
	})

	t.Run("gallery is a deduplicated union", func(t *testing.T) {
		assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}, merged.Gallery)
	})

	t.Run("social links never overwrite the primary", func(t *testing.T) {
		assert.Equal(t, map[string]string{
			"instagram": "@cyrano",
			"facebook":  "cyrano.fb",
			"tiktok":    "@cyrano",
		}, merged.SocialLinks)
	})

	t.Run("conflicts record discarded values", func(t *testing.T) {
		require.Len(t, result.Conflicts, 2)
		assert.Equal(t, models.MergeConflict{
			Field:         "name",
			ResolvedValue: "Le Cyrano",
			Discarded:     []string{"Restaurant Le Cyrano"},
			SourceIDs:     []string{"d1"},
		}, result.Conflicts[0])
		assert.Equal(t, "email", result.Conflicts[1].Field)
		assert.Equal(t, []string{"other@cyrano.fr"}, result.Conflicts[1].Discarded)
		assert.Equal(t, []string{"d2"}, result.Conflicts[1].SourceIDs)
	})

	t.Run("merged from lists duplicates in order", func(t *testing.T) {
		assert.Equal(t, []string{"d1", "d2"}, result.MergedFrom)
	})

	t.Run("inputs are not modified", func(t *testing.T) {
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, primary.Gallery)
		assert.Equal(t, map[string]string{"instagram": "@cyrano"}, primary.SocialLinks)
		assert.Empty(t, primary.Email)
		assert.Equal(t, []string{"b.jpg", "c.jpg"}, dup1.Gallery)
	})

	t.Run("output shares nothing with inputs", func(t *testing.T) {
		again := m.Merge(ctx, primary, []models.StoredRecord{dup1, dup2})
		again.Merged.Gallery[0] = "changed.jpg"
		again.Merged.SocialLinks["instagram"] = "@changed"

		assert.Equal(t, "a.jpg", primary.Gallery[0])
		assert.Equal(t, "@cyrano", primary.SocialLinks["instagram"])
	})
}

func TestMerger_Merge_NoDuplicates(t *testing.T) {
	m := newTestMerger()

	primary := models.StoredRecord{ID: "p", ListingFields: models.ListingFields{Name: "Le Cyrano"}}
	result := m.Merge(context.Background(), primary, nil)

	assert.Equal(t, primary, result.Merged)
	assert.Empty(t, result.MergedFrom)
	assert.Empty(t, result.FilledFields)
	assert.Empty(t, result.Conflicts)
}

func TestMerger_Merge_IdenticalValuesAreNotConflicts(t *testing.T) {
	m := newTestMerger()

	primary := models.StoredRecord{ID: "p", ListingFields: models.ListingFields{Phone: "0553123456"}}
	dup := models.StoredRecord{ID: "d", ListingFields: models.ListingFields{Phone: "0553123456"}}

	result := m.Merge(context.Background(), primary, []models.StoredRecord{dup})
	assert.Empty(t, result.Conflicts)
	assert.Empty(t, result.FilledFields)
}

func TestMerger_Merge_EmptyPrimaryCollections(t *testing.T) {
	m := newTestMerger()

	primary := models.StoredRecord{ID: "p"}
	dup := models.StoredRecord{ID: "d", ListingFields: models.ListingFields{
		Gallery:     []string{"x.jpg", "x.jpg"},
		SocialLinks: map[string]string{"instagram": "@x"},
	}}

	result := m.Merge(context.Background(), primary, []models.StoredRecord{dup})
	assert.Equal(t, []string{"x.jpg"}, result.Merged.Gallery)
	assert.Equal(t, map[string]string{"instagram": "@x"}, result.Merged.SocialLinks)
	assert.Nil(t, primary.Gallery)
	assert.Nil(t, primary.SocialLinks)
}
