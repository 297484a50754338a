// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"sync/atomic"

	"github.com/blobdb/blobdb/blobfile"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the blob layer's event tickers. The counters are standard
// prometheus collectors; register them with a prometheus.Registry to export.
type Metrics struct {
	// BlobCacheHit counts value-cache hits.
	BlobCacheHit prometheus.Counter
	// BlobCacheMiss counts reads that went to disk.
	BlobCacheMiss prometheus.Counter
	// GCBytesRead counts bytes read by GC rewrites.
	GCBytesRead prometheus.Counter
	// GCBytesWritten counts bytes written by GC rewrites.
	GCBytesWritten prometheus.Counter
	// GCBytesDiscarded counts input bytes GC dropped as stale.
	GCBytesDiscarded prometheus.Counter
	// ObsoleteFilesDeleted counts physically deleted blob files.
	ObsoleteFilesDeleted prometheus.Counter
}

// NewMetrics returns a fresh, unregistered Metrics.
func NewMetrics() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blobdb",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		BlobCacheHit:         counter("blob_cache_hit", "Value cache hits."),
		BlobCacheMiss:        counter("blob_cache_miss", "Value reads served from disk."),
		GCBytesRead:          counter("gc_bytes_read", "Bytes read by blob GC."),
		GCBytesWritten:       counter("gc_bytes_written", "Bytes written by blob GC."),
		GCBytesDiscarded:     counter("gc_bytes_discarded", "Stale input bytes dropped by blob GC."),
		ObsoleteFilesDeleted: counter("obsolete_files_deleted", "Physically deleted blob files."),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BlobCacheHit, m.BlobCacheMiss,
		m.GCBytesRead, m.GCBytesWritten, m.GCBytesDiscarded,
		m.ObsoleteFilesDeleted,
	}
}

func (m *Metrics) tickers() *blobfile.Tickers {
	return &blobfile.Tickers{CacheHit: m.BlobCacheHit, CacheMiss: m.BlobCacheMiss}
}

// Integer properties queryable by the host engine, one InternalStats per
// column family.
const (
	PropertyLiveBlobSize         = "blobdb.live-blob-size"
	PropertyNumLiveBlobFile      = "blobdb.num-live-blob-file"
	PropertyNumObsoleteBlobFile  = "blobdb.num-obsolete-blob-file"
	PropertyLiveBlobFileSize     = "blobdb.live-blob-file-size"
	PropertyObsoleteBlobFileSize = "blobdb.obsolete-blob-file-size"
)

type property int

const (
	propLiveBlobSize property = iota
	propNumLiveBlobFile
	propNumObsoleteBlobFile
	propLiveBlobFileSize
	propObsoleteBlobFileSize
	numProperties
)

var propertyNames = [numProperties]string{
	propLiveBlobSize:         PropertyLiveBlobSize,
	propNumLiveBlobFile:      PropertyNumLiveBlobFile,
	propNumObsoleteBlobFile:  PropertyNumObsoleteBlobFile,
	propLiveBlobFileSize:     PropertyLiveBlobFileSize,
	propObsoleteBlobFileSize: PropertyObsoleteBlobFileSize,
}

// InternalStats tracks one column family's integer properties. Updates are
// relaxed atomics; readers may observe mid-update combinations.
type InternalStats struct {
	cfID  uint32
	stats [numProperties]atomic.Int64
}

// NewInternalStats returns an InternalStats for the given column family.
func NewInternalStats(cfID uint32) *InternalStats {
	return &InternalStats{cfID: cfID}
}

func (s *InternalStats) add(p property, v int64) {
	if s != nil {
		s.stats[p].Add(v)
	}
}

func (s *InternalStats) sub(p property, v int64) {
	if s != nil {
		s.stats[p].Add(-v)
	}
}

// GetIntProperty returns the named property's current value.
func (s *InternalStats) GetIntProperty(name string) (uint64, bool) {
	for p, n := range propertyNames {
		if n == name {
			return uint64(s.stats[p].Load()), true
		}
	}
	return 0, false
}

// Collector returns a prometheus collector exporting the properties as
// gauges labeled by column family.
func (s *InternalStats) Collector() prometheus.Collector {
	return (*internalStatsCollector)(s)
}

type internalStatsCollector InternalStats

// Prometheus metric names for the properties (dots and dashes are not legal
// in metric names).
var internalStatsMetricNames = [numProperties]string{
	propLiveBlobSize:         "blobdb_live_blob_size",
	propNumLiveBlobFile:      "blobdb_num_live_blob_file",
	propNumObsoleteBlobFile:  "blobdb_num_obsolete_blob_file",
	propLiveBlobFileSize:     "blobdb_live_blob_file_size",
	propObsoleteBlobFileSize: "blobdb_obsolete_blob_file_size",
}

var internalStatsDescs = func() [numProperties]*prometheus.Desc {
	var descs [numProperties]*prometheus.Desc
	for p, name := range internalStatsMetricNames {
		descs[p] = prometheus.NewDesc(name, "Per-CF blob property.", []string{"cf"}, nil)
	}
	return descs
}()

// Describe implements prometheus.Collector.
func (c *internalStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range internalStatsDescs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *internalStatsCollector) Collect(ch chan<- prometheus.Metric) {
	cf := fmtUint(uint64(c.cfID))
	for p := range internalStatsDescs {
		ch <- prometheus.MustNewConstMetric(
			internalStatsDescs[p], prometheus.GaugeValue, float64(c.stats[p].Load()), cf)
	}
}

func fmtUint(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
