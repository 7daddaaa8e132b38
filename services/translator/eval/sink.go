// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"context"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/AleutianAI/solforge/services/translator/datatypes"
)

// evalMeasurement is the InfluxDB measurement name for evaluation points.
const evalMeasurement = "translation_evals"

// ResultSink receives each evaluation result as it completes. Sinks must be
// safe for concurrent use; the runner records from its worker goroutines.
type ResultSink interface {
	Record(ctx context.Context, result *datatypes.EvalResult) error
	Close()
}

// InfluxSink writes evaluation results as InfluxDB points.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

// NewInfluxSink builds a sink from INFLUXDB_URL / INFLUXDB_TOKEN /
// INFLUXDB_ORG / INFLUXDB_BUCKET, with local-dev defaults.
func NewInfluxSink() (*InfluxSink, error) {
	url := os.Getenv("INFLUXDB_URL")
	if url == "" {
		url = "http://localhost:8086"
	}

	token := os.Getenv("INFLUXDB_TOKEN")
	if token == "" {
		token = "dev_token_please_change"
	}

	org := os.Getenv("INFLUXDB_ORG")
	if org == "" {
		org = "aleutian"
	}

	bucket := os.Getenv("INFLUXDB_BUCKET")
	if bucket == "" {
		bucket = "translation-evals"
	}

	client := influxdb2.NewClient(url, token)
	writeAPI := client.WriteAPIBlocking(org, bucket)

	return &InfluxSink{
		client:   client,
		writeAPI: writeAPI,
		bucket:   bucket,
		org:      org,
	}, nil
}

// Record writes one result point. Finding counts become per-category
// fields so severity regressions show up directly in dashboards.
func (s *InfluxSink) Record(ctx context.Context, result *datatypes.EvalResult) error {
	p := influxdb2.NewPointWithMeasurement(evalMeasurement).
		AddTag("run_id", result.EvalRunID).
		AddTag("backend", result.Backend).
		AddTag("status", string(result.Status)).
		AddField("record_index", result.RecordIndex).
		AddField("pipeline_run_id", result.RunID).
		AddField("overall_severity", string(result.OverallSeverity)).
		AddField("interface_functions", result.InterfaceFunctions).
		AddField("scaffold_valid", result.ScaffoldValid).
		AddField("duration_ms", result.DurationMs).
		SetTime(time.Now())

	total := 0
	for category, count := range result.FindingCounts {
		p.AddField(fmt.Sprintf("findings_%s", category), count)
		total += count
	}
	p.AddField("findings_total", total)

	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
