package models

// TimerState is the shared countdown snapshot of one irrigation run.
type TimerState struct {
	Total   int  `json:"total"` // seconds
	Left    int  `json:"left"`  // seconds
	Running bool `json:"running"`
}
