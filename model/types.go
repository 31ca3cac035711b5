package model

import "time"

// CounterSample is one read of the aggregate interface counters.
// Samples are never mutated; the next sample supersedes the previous one.
type CounterSample struct {
	BytesReceived uint64    `json:"bytes_received"`
	BytesSent     uint64    `json:"bytes_sent"`
	Timestamp     time.Time `json:"timestamp"`
}

// ThroughputReading is the rate derived from two consecutive samples.
type ThroughputReading struct {
	DownloadRate float64       `json:"download_rate"` // Bytes/sec
	UploadRate   float64       `json:"upload_rate"`   // Bytes/sec
	Elapsed      time.Duration `json:"elapsed"`
	Timestamp    time.Time     `json:"timestamp"`
}

type GlobalStats struct {
	TotalDownload uint64  `json:"total_download"`
	TotalUpload   uint64  `json:"total_upload"`
	DownloadSpeed float64 `json:"download_speed"` // Bytes/sec
	UploadSpeed   float64 `json:"upload_speed"`   // Bytes/sec

	Ticks               uint64    `json:"ticks"`
	ConsecutiveFailures uint64    `json:"consecutive_failures"`
	Available           bool      `json:"available"`
	LastError           string    `json:"last_error,omitempty"`
	LastUpdate          time.Time `json:"last_update"`
}
