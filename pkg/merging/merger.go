// Package merging folds confirmed duplicate listings into a primary listing
package merging

import (
	"context"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// scalarField reads and writes one string field of a listing
type scalarField struct {
	name string
	get  func(*models.ListingFields) *string
}

// scalarFields are filled from duplicates, in this order
var scalarFields = []scalarField{
	{"siret", func(f *models.ListingFields) *string { return &f.Siret }},
	{"name", func(f *models.ListingFields) *string { return &f.Name }},
	{"address", func(f *models.ListingFields) *string { return &f.Address }},
	{"phone", func(f *models.ListingFields) *string { return &f.Phone }},
	{"email", func(f *models.ListingFields) *string { return &f.Email }},
	{"website", func(f *models.ListingFields) *string { return &f.Website }},
	{"place_id", func(f *models.ListingFields) *string { return &f.PlaceID }},
	{"logo", func(f *models.ListingFields) *string { return &f.Logo }},
	{"description", func(f *models.ListingFields) *string { return &f.Description }},
}

// Merger builds a canonical listing from a primary and its duplicates. It has no
// mutable state.
type Merger struct {
	log ectologger.Logger
}

// NewMerger creates a new Merger
func NewMerger(log ectologger.Logger) *Merger {
	return &Merger{log: log}
}

// Merge returns the primary listing enriched with data from the duplicates.
//
// A scalar field is filled only when the primary has no value, from the first
// duplicate that has one. The gallery is the union of all galleries with primary
// images first, and social links are added only for networks the primary lacks.
// The inputs are never modified.
func (m *Merger) Merge(ctx context.Context, primary models.StoredRecord, duplicates []models.StoredRecord) models.MergeResult {
	ctx, span := tracing.StartSpan(ctx, "merging.Merger.Merge")
	defer span.End()

	merged := primary.Clone()
	result := models.MergeResult{
		MergedFrom:   ectolinq.Map(duplicates, func(d models.StoredRecord) string { return d.ID }),
		FilledFields: []string{},
		Conflicts:    []models.MergeConflict{},
	}

	for _, field := range scalarFields {
		filled, conflict := m.mergeScalar(field, &merged.ListingFields, duplicates)
		if filled {
			result.FilledFields = append(result.FilledFields, field.name)
		}
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
		}
	}

	gallery, added := m.unionGallery(primary.Gallery, duplicates)
	merged.Gallery = gallery
	if added {
		result.FilledFields = append(result.FilledFields, "gallery")
	}

	links, added := m.unionSocialLinks(primary.SocialLinks, duplicates)
	merged.SocialLinks = links
	if added {
		result.FilledFields = append(result.FilledFields, "social_links")
	}

	result.Merged = merged

	m.log.WithContext(ctx).WithFields(map[string]any{
		"primary_id":      primary.ID,
		"duplicate_count": len(duplicates),
		"filled_fields":   result.FilledFields,
		"conflict_count":  len(result.Conflicts),
	}).Debug("Merged duplicate listings")

	return result
}

// mergeScalar fills an empty primary value. Any other non-empty duplicate value that
// differs from the kept one is recorded as a conflict.
func (m *Merger) mergeScalar(field scalarField, merged *models.ListingFields, duplicates []models.StoredRecord) (bool, *models.MergeConflict) {
	target := field.get(merged)
	filled := false

	var discarded, sources []string
	for i := range duplicates {
		value := *field.get(&duplicates[i].ListingFields)
		if value == "" {
			continue
		}
		if *target == "" {
			*target = value
			filled = true
			continue
		}
		if value != *target && !ectolinq.Contains(discarded, value) {
			discarded = append(discarded, value)
			sources = append(sources, duplicates[i].ID)
		}
	}

	if len(discarded) == 0 {
		return filled, nil
	}
	return filled, &models.MergeConflict{
		Field:         field.name,
		ResolvedValue: *target,
		Discarded:     discarded,
		SourceIDs:     sources,
	}
}

// unionGallery deduplicates images, keeping first-seen order
func (m *Merger) unionGallery(primary []string, duplicates []models.StoredRecord) ([]string, bool) {
	seen := make(map[string]bool)
	gallery := make([]string, 0, len(primary))

	add := func(images []string) int {
		count := 0
		for _, img := range images {
			if img == "" || seen[img] {
				continue
			}
			seen[img] = true
			gallery = append(gallery, img)
			count++
		}
		return count
	}

	add(primary)
	added := 0
	for _, d := range duplicates {
		added += add(d.Gallery)
	}

	if len(gallery) == 0 && primary == nil {
		return nil, false
	}
	return gallery, added > 0
}

// unionSocialLinks adds networks missing from the primary, first duplicate wins
func (m *Merger) unionSocialLinks(primary map[string]string, duplicates []models.StoredRecord) (map[string]string, bool) {
	links := make(map[string]string, len(primary))
	for k, v := range primary {
		links[k] = v
	}

	added := false
	for _, d := range duplicates {
		for k, v := range d.SocialLinks {
			if v == "" {
				continue
			}
			if existing, ok := links[k]; ok && existing != "" {
				continue
			}
			links[k] = v
			added = true
		}
	}

	if len(links) == 0 && primary == nil {
		return nil, false
	}
	return links, added
}
