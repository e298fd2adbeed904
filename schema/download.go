package schema

// DownloadState is the transient status of the current remote download attempt.
// It is reset at the start of every attempt.
type DownloadState struct {
	Downloading     bool   `json:"downloading"`
	ProgressPercent int    `json:"progress"`
	ErrorMessage    string `json:"error,omitempty"`
	ErrorCode       string `json:"errorCode,omitempty"`
	URL             string `json:"url,omitempty"`
	AttemptID       string `json:"attemptId,omitempty"`
}

func (s DownloadState) Failed() bool {
	return s.ErrorMessage != ""
}
