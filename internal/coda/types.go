// Defines Coda API v1 response types.

package coda

import (
	"encoding/json"
	"time"
)

// listPage is the common envelope of cursor-paginated listing responses.
type listPage[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken"`
	NextPageLink  string `json:"nextPageLink"`
}

// Reference is a compact pointer to another API entity.
type Reference struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Href        string `json:"href,omitempty"`
	Name        string `json:"name,omitempty"`
	BrowserLink string `json:"browserLink,omitempty"`
}

// UserInfo is the response of the /whoami credential check.
type UserInfo struct {
	Name      string     `json:"name"`
	LoginID   string     `json:"loginId"`
	Type      string     `json:"type,omitempty"`
	Href      string     `json:"href,omitempty"`
	TokenName string     `json:"tokenName,omitempty"`
	Scoped    bool       `json:"scoped,omitempty"`
	Workspace *Reference `json:"workspace,omitempty"`
}

// Doc is a top-level document in the workspace.
type Doc struct {
	ID          string          `json:"id"`
	Type        string          `json:"type,omitempty"`
	Href        string          `json:"href,omitempty"`
	BrowserLink string          `json:"browserLink,omitempty"`
	Name        string          `json:"name"`
	Owner       string          `json:"owner,omitempty"`
	OwnerName   string          `json:"ownerName,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Workspace   *Reference      `json:"workspace,omitempty"`
	Folder      *Reference      `json:"folder,omitempty"`
	SourceDoc   *Reference      `json:"sourceDoc,omitempty"`
	Icon        json.RawMessage `json:"icon,omitempty"`
	DocSize     json.RawMessage `json:"docSize,omitempty"`
	Published   json.RawMessage `json:"published,omitempty"`
}

// DocSummary is the subset of Doc fields persisted in docs.json.
type DocSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Owner       string    `json:"owner,omitempty"`
	OwnerName   string    `json:"ownerName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Href        string    `json:"href,omitempty"`
	BrowserLink string    `json:"browserLink,omitempty"`
}

// Summary projects a Doc into its docs.json form.
func (d *Doc) Summary() DocSummary {
	return DocSummary{
		ID:          d.ID,
		Name:        d.Name,
		Owner:       d.Owner,
		OwnerName:   d.OwnerName,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Href:        d.Href,
		BrowserLink: d.BrowserLink,
	}
}

// Page is a wiki-style content entity within a Doc. Its content is not part
// of the listing response; it comes from the async export protocol.
type Page struct {
	ID          string          `json:"id"`
	Type        string          `json:"type,omitempty"`
	Href        string          `json:"href,omitempty"`
	BrowserLink string          `json:"browserLink,omitempty"`
	Name        string          `json:"name"`
	Subtitle    string          `json:"subtitle,omitempty"`
	IconName    string          `json:"iconName,omitempty"`
	Image       json.RawMessage `json:"image,omitempty"`
	ContentType string          `json:"contentType,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Parent      *Reference      `json:"parent,omitempty"`
	Children    []Reference     `json:"children,omitempty"`
}

// TableTypeTable and TableTypeView discriminate the /tables listing, which
// returns both tables and views in one collection.
const (
	TableTypeTable = "table"
	TableTypeView  = "view"
)

// Table is a structured-data container, or a view over one. Views carry
// configuration only (layout, filter, sorts, parentTable) and never own row
// data.
type Table struct {
	ID            string     `json:"id"`
	Type          string     `json:"type,omitempty"`
	TableType     string     `json:"tableType,omitempty"`
	Href          string     `json:"href,omitempty"`
	BrowserLink   string     `json:"browserLink,omitempty"`
	Name          string     `json:"name"`
	Parent        *Reference `json:"parent,omitempty"`
	ParentTable   *Reference `json:"parentTable,omitempty"`
	DisplayColumn *Reference `json:"displayColumn,omitempty"`
	RowCount      int        `json:"rowCount,omitempty"`
	Layout        string     `json:"layout,omitempty"`
	Filter        *Formula   `json:"filter,omitempty"`
	Sorts         []Sort     `json:"sorts,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Formula is the FormulaDetail object attached to filters and calculated
// columns.
type Formula struct {
	Valid           bool `json:"valid"`
	IsVolatile      bool `json:"isVolatile,omitempty"`
	HasUserFormula  bool `json:"hasUserFormula,omitempty"`
	HasTodayFormula bool `json:"hasTodayFormula,omitempty"`
	HasNowFormula   bool `json:"hasNowFormula,omitempty"`
}

// Sort is a single sort spec in a table or view configuration.
type Sort struct {
	Column    *Reference `json:"column,omitempty"`
	Direction string     `json:"direction,omitempty"`
}

// Column belongs to exactly one Table. Format is kept as raw JSON: its shape
// is polymorphic per column type and must be preserved verbatim.
type Column struct {
	ID           string          `json:"id"`
	Type         string          `json:"type,omitempty"`
	Href         string          `json:"href,omitempty"`
	Name         string          `json:"name"`
	Display      bool            `json:"display,omitempty"`
	Calculated   bool            `json:"calculated,omitempty"`
	Formula      string          `json:"formula,omitempty"`
	DefaultValue string          `json:"defaultValue,omitempty"`
	Format       json.RawMessage `json:"format,omitempty"`
}

// Row holds per-column cell values. Values are requested in rich mode and
// kept as raw JSON so reference-typed cells retain the referenced row id
// rather than a resolved display value.
type Row struct {
	ID          string                     `json:"id"`
	Type        string                     `json:"type,omitempty"`
	Href        string                     `json:"href,omitempty"`
	Name        string                     `json:"name,omitempty"`
	Index       int                        `json:"index"`
	BrowserLink string                     `json:"browserLink,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
	Values      map[string]json.RawMessage `json:"values"`
}

// Export job statuses reported by the poll endpoint.
const (
	exportStatusInProgress = "inProgress"
	exportStatusComplete   = "complete"
	exportStatusFailed     = "failed"
)

// exportStatus is the response of both the export submit and poll endpoints.
type exportStatus struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Href         string `json:"href,omitempty"`
	DownloadLink string `json:"downloadLink,omitempty"`
	Error        string `json:"error,omitempty"`
}
