// Package timeouts defines shared timeout constants used across the
// operator CLI and the scenario runner. Centralizing these values
// prevents drift between command surfaces and makes the durations
// discoverable.
package timeouts

import "time"

// ScenarioStep caps a single scripted step against the engine.
const ScenarioStep = 10 * time.Second

// ScenarioRun caps one scenario file end to end.
const ScenarioRun = 30 * time.Second

// OperatorCommand caps one operator CLI invocation, including journal
// surgery and archive import.
const OperatorCommand = 10 * time.Minute

// TelemetryShutdown limits how long a telemetry flush may block process
// exit.
const TelemetryShutdown = 5 * time.Second
