package models

// MergeConflict records a duplicate value that lost to the primary listing's value
type MergeConflict struct {
	Field         string   `json:"field"`
	ResolvedValue string   `json:"resolved_value"`
	Discarded     []string `json:"discarded"`
	SourceIDs     []string `json:"source_ids"`
}

// MergeResult is the canonical listing produced from a primary and its confirmed duplicates
type MergeResult struct {
	Merged       StoredRecord    `json:"merged"`
	MergedFrom   []string        `json:"merged_from"`
	FilledFields []string        `json:"filled_fields,omitempty"`
	Conflicts    []MergeConflict `json:"conflicts,omitempty"`
}
