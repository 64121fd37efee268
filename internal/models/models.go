package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is a server-assigned identifier. The API has returned both numeric
// and string ids over time, so both decode into the same string form.
type ID string

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as a plain string.
func (id ID) String() string {
	return string(id)
}

// Metadata holds server bookkeeping timestamps.
type Metadata struct {
	ID        ID        `json:"id,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// User owns zero or more projects.
type User struct {
	ID       ID        `json:"id"`
	Projects []Project `json:"projects,omitempty"`
	Metadata Metadata  `json:"metadata,omitempty"`
}

// Project is one published site backed by a local folder.
type Project struct {
	ID            ID       `json:"id"`
	Slug          string   `json:"slug"`
	Name          string   `json:"name"`
	FolderToShare string   `json:"folderToShare"`
	Public        bool     `json:"public"`
	PublishedURL  string   `json:"publishedUrl,omitempty"`
	RepositoryURL string   `json:"repositoryUrl,omitempty"`
	User          *User    `json:"user,omitempty"`
	Metadata      Metadata `json:"metadata,omitempty"`
}

// Published reports whether the server has deployed the project yet.
func (p Project) Published() bool {
	return p.PublishedURL != ""
}

// DashboardURL is where users manage their projects.
const DashboardURL = "https://markbase.xyz"
