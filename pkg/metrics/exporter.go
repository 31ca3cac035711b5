package metrics

import (
	"github.com/kisy/netmole/model"
	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "netmole"

// StatsSource is satisfied by *stats.Aggregator.
type StatsSource interface {
	GetGlobalStats() model.GlobalStats
}

// Exporter reports the latest aggregate snapshot on every scrape.
type Exporter struct {
	src StatsSource

	downloadRate *prometheus.Desc
	uploadRate   *prometheus.Desc
	received     *prometheus.Desc
	sent         *prometheus.Desc
	failures     *prometheus.Desc
	available    *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

func NewExporter(src StatsSource) *Exporter {
	return &Exporter{
		src: src,
		downloadRate: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "download_bytes_per_second"),
			"Aggregate receive throughput over the last tick.", nil, nil),
		uploadRate: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "upload_bytes_per_second"),
			"Aggregate send throughput over the last tick.", nil, nil),
		received: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "received_bytes_total"),
			"Bytes received since start or the last reset.", nil, nil),
		sent: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "sent_bytes_total"),
			"Bytes sent since start or the last reset.", nil, nil),
		failures: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "consecutive_sample_failures"),
			"Counter reads that failed in a row.", nil, nil),
		available: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "counters_available"),
			"1 if the last counter read succeeded.", nil, nil),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.downloadRate
	ch <- e.uploadRate
	ch <- e.received
	ch <- e.sent
	ch <- e.failures
	ch <- e.available
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	g := e.src.GetGlobalStats()

	available := 0.0
	if g.Available {
		available = 1
	}

	ch <- prometheus.MustNewConstMetric(e.downloadRate, prometheus.GaugeValue, g.DownloadSpeed)
	ch <- prometheus.MustNewConstMetric(e.uploadRate, prometheus.GaugeValue, g.UploadSpeed)
	ch <- prometheus.MustNewConstMetric(e.received, prometheus.CounterValue, float64(g.TotalDownload))
	ch <- prometheus.MustNewConstMetric(e.sent, prometheus.CounterValue, float64(g.TotalUpload))
	ch <- prometheus.MustNewConstMetric(e.failures, prometheus.GaugeValue, float64(g.ConsecutiveFailures))
	ch <- prometheus.MustNewConstMetric(e.available, prometheus.GaugeValue, available)
}
