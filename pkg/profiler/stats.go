package profiler

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	byte = 1 << (10 * iota)
	kilobyte
	megabyte
	gigabyte
)

var (
	ErrMissingGatherer = fmt.Errorf("missing metrics gatherer")
	ErrMissingStatsDir = fmt.Errorf("missing stats dir")
)

// DumpStats writes the metric families collected by the given gatherer to a
// new file named after the current time inside dir. It returns the path of
// the written file.
func DumpStats(gatherer prometheus.Gatherer, dir string) (string, error) {
	if gatherer == nil {
		return "", ErrMissingGatherer
	}
	if len(dir) == 0 {
		return "", ErrMissingStatsDir
	}

	metricFamilies, err := gatherer.Gather()
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(dir, time.Now().UTC().Format(time.RFC3339Nano))
	file, err := os.OpenFile(
		filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644,
	)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, v := range metricFamilies {
		if _, err := writer.WriteString(v.String() + "\n"); err != nil {
			return "", err
		}
	}
	if err := writer.Flush(); err != nil {
		return "", err
	}

	log.Debugf("profiler: dumped %d metric families to %s", len(metricFamilies), filePath)
	return filePath, nil
}

// LogMemoryStats logs memory usage and number of goroutines of the process.
func LogMemoryStats() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Debugf(
		"profiler: total allocated: %.3fMB, heap allocated: %.3fMB, "+
			"allocated objects count: %v, freed objects count: %v, "+
			"num of go routines: %v",
		toMegabytes(memStats.TotalAlloc),
		toMegabytes(memStats.HeapAlloc),
		memStats.Mallocs,
		memStats.Frees,
		runtime.NumGoroutine(),
	)
}

func toMegabytes(bytes uint64) float64 {
	return float64(bytes) / megabyte
}
