package models

// UploadEvent is the data payload of a Cloud Storage "object finalized" CloudEvent.
type UploadEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}
