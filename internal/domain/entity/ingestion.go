package entity

import (
	"strings"
	"time"
)

// Recognized price sheet columns
const (
	ColumnAirportCode  = "Airport Code"
	ColumnAirportID    = "Airport ID"
	ColumnStartDate    = "Start Date"
	ColumnEndDate      = "End Date"
	ColumnPrice        = "Price"
	ColumnOutbound     = "Outbound Flight Details"
	ColumnReturnFlight = "Return Flight Details"
)

// PriceSheetRow is one data row of an uploaded price sheet, as raw text.
type PriceSheetRow struct {
	Number      int
	AirportCode string
	AirportID   string
	StartDate   string
	EndDate     string
	Price       string
	Outbound    string
	Return      string
	Raw         string
}

// IsEmpty reports whether every tracked column is blank.
func (r PriceSheetRow) IsEmpty() bool {
	for _, v := range []string{r.AirportCode, r.AirportID, r.StartDate, r.EndDate, r.Price, r.Outbound, r.Return} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// IngestionIssue describes one rejected or skipped row.
type IngestionIssue struct {
	Row   string `json:"row"`
	Error string `json:"error,omitempty"`
	Info  string `json:"info,omitempty"`
}

// IngestionReport is returned for every bulk upload.
type IngestionReport struct {
	Success      bool             `json:"success"`
	Message      string           `json:"message"`
	AddedCount   int              `json:"addedCount"`
	SkippedCount int              `json:"skippedCount"`
	ErrorCount   int              `json:"errorCount"`
	Issues       []IngestionIssue `json:"issues"`
}

// Ingestion run statuses
const (
	IngestionCompleted = "COMPLETED"
	IngestionFailed    = "FAILED"
)

// IngestionRun is the audit record of one upload
type IngestionRun struct {
	ID        string        `json:"id"`
	DealID    string        `json:"dealId"`
	FileName  string        `json:"fileName"`
	Added     int           `json:"addedCount"`
	Skipped   int           `json:"skippedCount"`
	Errors    int           `json:"errorCount"`
	Status    string        `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	Duration  time.Duration `json:"durationNs"`
	CreatedAt time.Time     `json:"createdAt"`
}
