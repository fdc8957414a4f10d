package combine

// Counts breaks down what happened to each matched file during an export.
type Counts struct {
	TotalMatched  int `json:"totalMatched"`
	Included      int `json:"included"`
	SkippedBinary int `json:"skippedBinary"`
	SkippedLarge  int `json:"skippedLarge"`
	SkippedError  int `json:"skippedError"`
}

// Report summarizes a finished export.
type Report struct {
	Included     int    `json:"included"`
	BytesWritten int64  `json:"bytesWritten"`
	Counts       Counts `json:"counts"`
}

// Result is the outcome of ExportSelectedFiles.
type Result struct {
	OutputMarkdownPath string `json:"outputMarkdownPath"`
	Report             Report `json:"report"`
}

// TreeResult is the outcome of WriteTreeOnly.
type TreeResult struct {
	OutputPath   string
	BytesWritten int64
}
