package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/sdejongh/backup2ftp/pkg/models"
)

// JSONFormatter formats output as JSON for automation and scripting
type JSONFormatter struct {
	writer    io.Writer
	host      string
	total     int
	startTime time.Time
	errors    []JSONErrorData
}

// JSONReportData represents the final report data
type JSONReportData struct {
	RunID      string          `json:"run_id"`
	Host       string          `json:"host"`
	RemoteRoot string          `json:"remote_root,omitempty"`
	DryRun     bool            `json:"dry_run,omitempty"`
	Status     string          `json:"status"`
	StartTime  string          `json:"start_time"`
	Duration   string          `json:"duration"`
	DurationMs int64           `json:"duration_ms"`
	Stats      JSONStatsData   `json:"stats"`
	Items      []JSONItemData  `json:"items,omitempty"`
	Errors     []JSONErrorData `json:"errors,omitempty"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	Candidates       int    `json:"candidates"`
	Attempted        int    `json:"attempted"`
	Uploaded         int    `json:"uploaded"`
	Replaced         int    `json:"replaced"`
	Skipped          int    `json:"skipped"`
	Failed           int    `json:"failed"`
	BytesTransferred int64  `json:"bytes_transferred"`
	AverageSpeed     int64  `json:"average_speed_bytes_per_sec,omitempty"`
	AverageSpeedStr  string `json:"average_speed,omitempty"`
}

// JSONItemData represents the outcome of one candidate
type JSONItemData struct {
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path,omitempty"`
	SourceDir  string `json:"source_dir,omitempty"`
	Size       int64  `json:"size"`
	Decision   string `json:"decision"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// JSONErrorData represents an error entry
type JSONErrorData struct {
	Path      string `json:"path,omitempty"`
	Operation string `json:"operation,omitempty"`
	Error     string `json:"error"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(writer io.Writer, host string, totalCandidates int) error {
	if writer == nil {
		writer = os.Stdout
	}
	f.writer = writer
	f.host = host
	f.total = totalCandidates
	f.startTime = time.Now()
	return nil
}

// Progress is not streamed so the output stays a single JSON document
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	return nil
}

// Complete writes the run report as one JSON document
func (f *JSONFormatter) Complete(report *models.RunReport) error {
	if f.writer == nil {
		f.writer = io.Discard
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.reportData(report))
}

func (f *JSONFormatter) reportData(report *models.RunReport) JSONReportData {
	var avgSpeed int64
	var avgSpeedStr string
	if report.Duration.Seconds() > 0 && report.Stats.BytesTransferred > 0 {
		avgSpeed = int64(float64(report.Stats.BytesTransferred) / report.Duration.Seconds())
		avgSpeedStr = formatBytes(avgSpeed) + "/s"
	}

	items := make([]JSONItemData, 0, len(report.Items))
	for _, item := range report.Items {
		items = append(items, JSONItemData{
			LocalPath:  item.LocalPath,
			RemotePath: item.RemotePath,
			SourceDir:  item.SourceDir,
			Size:       item.Size,
			Decision:   string(item.Decision),
			Error:      item.Error,
			DurationMs: item.Duration.Milliseconds(),
		})
	}

	errs := append([]JSONErrorData(nil), f.errors...)
	for _, e := range report.Errors {
		errs = append(errs, JSONErrorData{
			Path:      e.FilePath,
			Operation: e.Operation,
			Error:     e.Error,
		})
	}

	host := report.Host
	if host == "" {
		host = f.host
	}

	return JSONReportData{
		RunID:      report.RunID,
		Host:       host,
		RemoteRoot: report.RemoteRoot,
		DryRun:     report.DryRun,
		Status:     string(report.Status),
		StartTime:  report.StartTime.UTC().Format(time.RFC3339),
		Duration:   report.Duration.Round(time.Millisecond).String(),
		DurationMs: report.Duration.Milliseconds(),
		Stats: JSONStatsData{
			Candidates:       report.Stats.Candidates,
			Attempted:        report.Stats.Attempted,
			Uploaded:         report.Stats.Uploaded,
			Replaced:         report.Stats.Replaced,
			Skipped:          report.Stats.Skipped,
			Failed:           report.Stats.Failed,
			BytesTransferred: report.Stats.BytesTransferred,
			AverageSpeed:     avgSpeed,
			AverageSpeedStr:  avgSpeedStr,
		},
		Items:  items,
		Errors: errs,
	}
}

// Error records an error for the final document
func (f *JSONFormatter) Error(err error) error {
	f.errors = append(f.errors, JSONErrorData{Error: err.Error()})
	return nil
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
