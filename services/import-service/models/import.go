package models

// ImportResult summarises one uploaded CSV file.
type ImportResult struct {
	Bucket        string   `json:"bucket"`
	Key           string   `json:"key"`
	Rows          int      `json:"rows"`
	MalformedRows int      `json:"malformed_rows"`
	Batches       int      `json:"batches"`
	FailedBatches int      `json:"failed_batches"`
	FailedEntries []string `json:"failed_entries,omitempty"`
}

// UploadURLResponse is returned by GET /import.
type UploadURLResponse struct {
	UploadURL        string `json:"uploadUrl"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	Key              string `json:"key"`
	Method           string `json:"method"`
}
