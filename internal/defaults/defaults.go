// Package defaults provides embedded copies of the example config and
// a sample project plan for the atelier init subcommand.
package defaults

import _ "embed"

// ConfigYAML is the example configuration file.
//
//go:embed atelier.example.yaml
var ConfigYAML []byte

// PlanMD is a sample markdown project plan for the ingest subcommand.
//
//go:embed plan.example.md
var PlanMD []byte
