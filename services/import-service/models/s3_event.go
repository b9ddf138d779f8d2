package models

// S3Event is the notification S3 delivers to the upload events queue.
type S3Event struct {
	Records []S3EventRecord `json:"Records"`

	// Set only on the s3:TestEvent sent when notifications are configured.
	Event string `json:"Event,omitempty"`
}

type S3EventRecord struct {
	EventSource string `json:"eventSource"`
	EventName   string `json:"eventName"`
	S3          struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"object"`
	} `json:"s3"`
}

// ObjectRef identifies one uploaded object.
type ObjectRef struct {
	Bucket string
	Key    string
}
