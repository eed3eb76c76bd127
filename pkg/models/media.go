package models

// Media represents the attachment shared by every send of a batch
type Media struct {
	MediaID  string `json:"media_id"`
	Provider string `json:"provider"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}
