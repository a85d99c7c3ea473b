// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration loading, runtime metrics and debug introspection for
// hioload-jobs.
//
// Provides:
//   - Layered configuration (defaults, YAML file, environment, flags) via koanf
//   - Conversion of the loaded configuration into a scheduler.Config
//   - Logger construction from the log section
//   - A concurrent metrics registry and named debug probes
package control
