package models

import "time"

// ROISnapshot is an immutable price comparison for a project at a point in time
type ROISnapshot struct {
	ID           string    `json:"id" ch:"id"`
	ProjectID    string    `json:"projectId" ch:"project_id"`
	InitialPrice float64   `json:"initialPrice" ch:"initial_price"`
	CurrentPrice float64   `json:"currentPrice" ch:"current_price"`
	ROI          float64   `json:"roi" ch:"roi"`
	Timestamp    time.Time `json:"timestamp" ch:"timestamp"`
}
