package models

import "time"

// ListingFields holds the comparable fields shared by candidate and stored listings.
// An empty string or nil collection means the field is absent.
type ListingFields struct {
	Siret       string            `json:"siret,omitempty"`
	Name        string            `json:"name,omitempty"`
	Address     string            `json:"address,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Email       string            `json:"email,omitempty"`
	Website     string            `json:"website,omitempty"`
	PlaceID     string            `json:"place_id,omitempty"` // Mapping platform location id
	Logo        string            `json:"logo,omitempty"`
	Description string            `json:"description,omitempty"`
	Gallery     []string          `json:"gallery,omitempty"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
}

// CandidateRecord is a listing submission that has not been persisted yet
type CandidateRecord struct {
	ListingFields
}

// StoredRecord is a listing already accepted into the directory
type StoredRecord struct {
	ID string `json:"id" validate:"required"`
	ListingFields
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DuplicateCheck *DuplicateCheck `json:"duplicate_check,omitempty"`
}

// DisplayName returns the listing name, falling back to its id
func (r StoredRecord) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// DuplicateCheck records that a listing went through duplicate detection.
// Overridden is set when the submitter proceeded despite a high-confidence match.
type DuplicateCheck struct {
	Checked    bool      `json:"checked"`
	Overridden bool      `json:"overridden"`
	MatchedIDs []string  `json:"matched_ids,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Clone returns a copy that shares no slices or maps with the receiver
func (f ListingFields) Clone() ListingFields {
	c := f
	if f.Gallery != nil {
		c.Gallery = append([]string(nil), f.Gallery...)
	}
	if f.SocialLinks != nil {
		c.SocialLinks = make(map[string]string, len(f.SocialLinks))
		for k, v := range f.SocialLinks {
			c.SocialLinks[k] = v
		}
	}
	return c
}

// Clone returns a deep copy of the stored record
func (r StoredRecord) Clone() StoredRecord {
	c := r
	c.ListingFields = r.ListingFields.Clone()
	if r.DuplicateCheck != nil {
		check := *r.DuplicateCheck
		check.MatchedIDs = append([]string(nil), r.DuplicateCheck.MatchedIDs...)
		c.DuplicateCheck = &check
	}
	return c
}
