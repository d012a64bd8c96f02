package models

import (
	"time"

	"github.com/google/uuid"
)

// Inferred column types, named as the analysts reading the statistics expect.
const (
	DTypeInt      = "int64"
	DTypeFloat    = "float64"
	DTypeBool     = "bool"
	DTypeDatetime = "datetime"
	DTypeObject   = "object"
)

// CSVUpload is a stored CSV file and its descriptive statistics.
type CSVUpload struct {
	ID          uuid.UUID      `json:"id"`
	FileName    string         `json:"file_name"`
	FilePath    string         `json:"-"`
	FileSize    int64          `json:"file_size"`
	RowCount    int            `json:"row_count"`
	ColumnCount int            `json:"column_count"`
	Encoding    string         `json:"encoding"`
	Statistics  *CSVStatistics `json:"statistics,omitempty"`
	UploadedBy  *uuid.UUID     `json:"uploaded_by,omitempty"`
	UploadedAt  time.Time      `json:"uploaded_at"`
}

// CSVStatistics describes the shape and content of a CSV file.
type CSVStatistics struct {
	RowCount       int                       `json:"row_count"`
	ColumnCount    int                       `json:"column_count"`
	Columns        []string                  `json:"columns"`
	DTypes         map[string]string         `json:"dtypes"`
	MissingValues  map[string]int            `json:"missing_values"`
	NumericSummary map[string]NumericSummary `json:"numeric_summary"`
}

// NumericSummary holds descriptive statistics of one numeric column.
type NumericSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	P25   float64 `json:"25%"`
	P50   float64 `json:"50%"`
	P75   float64 `json:"75%"`
	Max   float64 `json:"max"`
}

// Analysis is an AI analysis of a CSV upload.
type Analysis struct {
	ID               uuid.UUID  `json:"id"`
	CSVUploadID      uuid.UUID  `json:"csv_upload_id"`
	Prompt           string     `json:"prompt"`
	CustomPrompt     string     `json:"custom_prompt,omitempty"`
	PromptTemplateID *uuid.UUID `json:"prompt_template_id,omitempty"`
	Result           string     `json:"result"`
	ModelUsed        string     `json:"model_used"`
	TokenCount       int        `json:"token_count"`
	Status           string     `json:"status"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedBy        *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
