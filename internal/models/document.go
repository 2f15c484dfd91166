// Package models defines the records shared by storage, services and the HTTP API.
package models

import "time"

// Resume is an uploaded candidate resume. ParsedText is the extractor output.
type Resume struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	OriginalFilename string    `json:"original_filename"`
	Filename         string    `json:"filename"`
	FilePath         string    `json:"file_path"`
	FileType         string    `json:"file_type"`
	ParsedText       string    `json:"parsed_text"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// JobDescription is an uploaded job description owned by an admin.
type JobDescription struct {
	ID         int64     `json:"id"`
	AdminID    int64     `json:"admin_id"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"file_path"`
	FileType   string    `json:"file_type"`
	Title      string    `json:"title"`
	ParsedText string    `json:"parsed_text"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DisplayTitle returns the title, or the stored filename when the title is empty.
func (jd *JobDescription) DisplayTitle() string {
	if jd.Title != "" {
		return jd.Title
	}
	return jd.Filename
}

// SearchHit is one owned document in a keyword search response.
type SearchHit struct {
	ID         int64   `json:"id"`
	Filename   string  `json:"filename"`
	MatchFound bool    `json:"match_found"`
	Score      float64 `json:"score,omitempty"`
	Preview    string  `json:"preview,omitempty"`
}
