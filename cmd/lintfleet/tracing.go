// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// traceFileName is the span export target inside the report folder.
const traceFileName = "trace.json"

// initTracing installs a global OpenTelemetry trace provider for the
// run.
//
// # Description
//
// Spans are exported as JSON lines into <reportDir>/trace.json, or to
// stderr when no report folder is configured. The engine picks the
// provider up through the otel global, so nothing else needs wiring.
//
// # Inputs
//
//   - ctx: Used for resource detection.
//   - reportDir: Absolute report folder, or empty.
//
// # Outputs
//
//   - func(context.Context) error: Flushes and shuts the provider down.
//     Call it after the run completes.
//   - error: Non-nil when the exporter cannot be created.
func initTracing(ctx context.Context, reportDir string) (func(context.Context) error, error) {
	var out io.Writer = os.Stderr
	var traceFile *os.File
	if reportDir != "" {
		if err := os.MkdirAll(reportDir, 0o755); err != nil {
			return nil, fmt.Errorf("create report folder: %w", err)
		}
		f, err := os.Create(filepath.Join(reportDir, traceFileName))
		if err != nil {
			return nil, fmt.Errorf("create trace file: %w", err)
		}
		out = f
		traceFile = f
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(out),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		if traceFile != nil {
			traceFile.Close()
		}
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("lintfleet"),
			attribute.String("lintfleet.version", versionString()),
		),
	)
	if err != nil {
		if traceFile != nil {
			traceFile.Close()
		}
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	return func(ctx context.Context) error {
		err := provider.Shutdown(ctx)
		if traceFile != nil {
			traceFile.Close()
		}
		return err
	}, nil
}
