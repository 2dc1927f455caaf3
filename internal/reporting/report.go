package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"minuteman/internal/config"
	"minuteman/internal/logging"
	"minuteman/internal/wipe"
)

// Version is stamped into every report. Set by the binary.
var Version = "dev"

// Report is the JSON record written for every finished sanitization job.
type Report struct {
	ReportID  string                 `json:"report_id"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Hostname  string                 `json:"hostname"`
	Config    map[string]interface{} `json:"config"`
	Operation OperationReport        `json:"operation"`
}

// OperationReport describes one job.
type OperationReport struct {
	JobID          string     `json:"job_id"`
	Device         string     `json:"device"`
	Model          string     `json:"model"`
	Serial         string     `json:"serial"`
	Method         string     `json:"method"`
	Passes         int        `json:"passes"`
	VerifiedPasses int        `json:"verified_passes"`
	PassesDone     int        `json:"passes_done"`
	DeviceSize     int64      `json:"device_size"`
	BytesWritten   int64      `json:"bytes_written"`
	Status         string     `json:"status"`
	Simulated      bool       `json:"simulated"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Duration       string     `json:"duration"`
	SpeedMBps      float64    `json:"speed_mbps"`
	Error          string     `json:"error,omitempty"`
}

// GenerateReport builds a report from a job's final snapshot.
func GenerateReport(snap wipe.Snapshot, cfg *config.Config) *Report {
	hostname, _ := os.Hostname()

	op := OperationReport{
		JobID:          snap.JobID,
		Device:         snap.DevicePath,
		Model:          snap.Model,
		Serial:         snap.Serial,
		Method:         snap.Method,
		Passes:         snap.PassCount,
		VerifiedPasses: snap.VerifyCount,
		PassesDone:     snap.PassIndex,
		DeviceSize:     snap.DeviceSize,
		BytesWritten:   snap.TotalWritten,
		Status:         snap.Status.String(),
		Simulated:      snap.Simulated,
		StartTime:      snap.StartTime,
	}
	if !snap.EndTime.IsZero() {
		end := snap.EndTime
		op.EndTime = &end
		elapsed := end.Sub(snap.StartTime)
		op.Duration = elapsed.Truncate(time.Millisecond).String()
		if secs := elapsed.Seconds(); secs > 0 {
			op.SpeedMBps = float64(snap.TotalWritten) / (1024 * 1024) / secs
		}
	}
	if snap.Err != nil {
		op.Error = snap.Err.Error()
	}

	return &Report{
		ReportID:  uuid.NewString(),
		Version:   Version,
		Timestamp: time.Now(),
		Hostname:  hostname,
		Config:    configToMap(cfg),
		Operation: op,
	}
}

// SaveReport writes the report under reporting.local_path and returns its
// path. It does nothing when reporting is disabled.
func SaveReport(report *Report, cfg *config.Config) (string, error) {
	if !cfg.Reporting.Enabled {
		return "", nil
	}

	if err := os.MkdirAll(cfg.Reporting.LocalPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := fmt.Sprintf("minuteman_report_%s_%s.json",
		report.Timestamp.Format("20060102_150405"), shortID(report.Operation.JobID))
	path := filepath.Join(cfg.Reporting.LocalPath, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Reporter saves a report for every finished job. Register Record with
// wipe.Engine.OnFinish.
type Reporter struct {
	cfg    *config.Config
	logger *logging.Logger
}

func NewReporter(cfg *config.Config, logger *logging.Logger) *Reporter {
	return &Reporter{cfg: cfg, logger: logger}
}

func (r *Reporter) Record(snap wipe.Snapshot) {
	path, err := SaveReport(GenerateReport(snap, r.cfg), r.cfg)
	if err != nil {
		r.logger.Log("ERROR", "Failed to save report", "job", snap.JobID, "error", err)
		return
	}
	if path != "" {
		r.logger.Log("INFO", "Report saved", "job", snap.JobID, "path", path)
	}
}

func configToMap(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"security": map[string]interface{}{
			"allow_device_writes": cfg.Security.AllowDeviceWrites,
			"require_root":        cfg.Security.RequireRoot,
			"excluded_devices":    cfg.Security.ExcludedDevices,
		},
		"wipe": map[string]interface{}{
			"chunk_size":        cfg.Wipe.ChunkSize,
			"max_speed_mbps":    cfg.Wipe.MaxSpeedMBps,
			"simulated_size_mb": cfg.Wipe.SimulatedSizeMB,
			"checkpoint_every":  cfg.Wipe.CheckpointEvery,
		},
		"logging": map[string]interface{}{
			"level": cfg.Logging.Level,
			"file":  cfg.Logging.File,
		},
	}
}
