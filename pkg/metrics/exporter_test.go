package metrics

import (
	"strings"
	"testing"

	"github.com/kisy/netmole/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource model.GlobalStats

func (s staticSource) GetGlobalStats() model.GlobalStats { return model.GlobalStats(s) }

func TestExporter_Collect(t *testing.T) {
	e := NewExporter(staticSource{
		TotalDownload:       2_048_000,
		TotalUpload:         500_000,
		DownloadSpeed:       1_048_000,
		UploadSpeed:         0,
		ConsecutiveFailures: 2,
		Available:           true,
	})

	expected := `
# HELP netmole_consecutive_sample_failures Counter reads that failed in a row.
# TYPE netmole_consecutive_sample_failures gauge
netmole_consecutive_sample_failures 2
# HELP netmole_counters_available 1 if the last counter read succeeded.
# TYPE netmole_counters_available gauge
netmole_counters_available 1
# HELP netmole_download_bytes_per_second Aggregate receive throughput over the last tick.
# TYPE netmole_download_bytes_per_second gauge
netmole_download_bytes_per_second 1.048e+06
# HELP netmole_received_bytes_total Bytes received since start or the last reset.
# TYPE netmole_received_bytes_total counter
netmole_received_bytes_total 2.048e+06
# HELP netmole_sent_bytes_total Bytes sent since start or the last reset.
# TYPE netmole_sent_bytes_total counter
netmole_sent_bytes_total 500000
# HELP netmole_upload_bytes_per_second Aggregate send throughput over the last tick.
# TYPE netmole_upload_bytes_per_second gauge
netmole_upload_bytes_per_second 0
`
	require.NoError(t, testutil.CollectAndCompare(e, strings.NewReader(expected)))
}

func TestExporter_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewExporter(staticSource{})))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}
