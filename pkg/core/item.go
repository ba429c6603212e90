package core

import "time"

// IntegrationItem is the normalized representation of a provider record.
// ID is derived from the native record id and the item type, so fetching the
// same record twice yields the same ID.
type IntegrationItem struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Type             string     `json:"type"`
	CreationTime     *time.Time `json:"creation_time,omitempty"`
	LastModifiedTime *time.Time `json:"last_modified_time,omitempty"`

	// Optional extension fields.
	URL        string `json:"url,omitempty"`
	Directory  bool   `json:"directory"`
	Visibility bool   `json:"visibility"`
}
