package entity

// TranscodeJob is the queued unit of work for one video. It carries only
// what the worker needs to find and update a single record.
type TranscodeJob struct {
	DealID       string `json:"dealId"`
	VideoID      string `json:"videoId"`
	TempFilePath string `json:"tempFilePath"`
}
