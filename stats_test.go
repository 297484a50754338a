// Copyright 2026 The BlobDB Authors. All rights reserved. Use of this source
// code is governed by a BSD-style license that can be found in the LICENSE
// file.

package blobdb

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegister(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m))

	m.BlobCacheHit.Inc()
	m.GCBytesWritten.Add(123)

	families, err := reg.Gather()
	require.NoError(t, err)
	byName := map[string]float64{}
	for _, f := range families {
		byName[f.GetName()] = f.GetMetric()[0].GetCounter().GetValue()
	}
	require.Equal(t, float64(1), byName["blobdb_blob_cache_hit"])
	require.Equal(t, float64(123), byName["blobdb_gc_bytes_written"])
}

func TestInternalStatsCollector(t *testing.T) {
	s := NewInternalStats(3)
	s.add(propLiveBlobSize, 1000)
	s.add(propNumLiveBlobFile, 2)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(s.Collector()))
	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]float64{}
	for _, f := range families {
		m := f.GetMetric()[0]
		require.Equal(t, "cf", m.GetLabel()[0].GetName())
		require.Equal(t, "3", m.GetLabel()[0].GetValue())
		found[f.GetName()] = m.GetGauge().GetValue()
	}
	require.Equal(t, float64(1000), found["blobdb_live_blob_size"])
	require.Equal(t, float64(2), found["blobdb_num_live_blob_file"])

	v, ok := s.GetIntProperty(PropertyLiveBlobSize)
	require.True(t, ok)
	require.Equal(t, uint64(1000), v)
}
