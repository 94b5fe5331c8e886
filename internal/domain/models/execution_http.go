package models

// Requests for execution HTTP endpoints. Defined in domain for consistency and reuse.

type ExecuteRequest struct {
	Scanners    []string `json:"scanners" validate:"required,min=1"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Symbols     []string `json:"symbols"`
	Method      string   `json:"method" default:"union" validate:"oneof=union intersection weighted custom"`
	MinScanners int      `json:"min_scanners" default:"2" validate:"gte=1"`
	TimeoutSec  int      `json:"timeout_sec" default:"120" validate:"gte=1,lte=3600"`
	MaxWorkers  int      `json:"max_workers" default:"8" validate:"gte=1,lte=256"`
	Parallel    bool     `json:"parallel" default:"true"`

	// Weights overrides per-scanner catalog weights for this run.
	Weights map[string]float64 `json:"weights"`
	Custom  *CustomRules       `json:"custom"`

	// Overrides are forwarded verbatim to the isolation loader.
	Overrides map[string]map[string]interface{} `json:"overrides"`
}

type ScannerInfoResponse struct {
	ID         string  `json:"id"`
	Entry      string  `json:"entry"`
	Variant    string  `json:"variant"`
	Suspension string  `json:"suspension"`
	Model      string  `json:"model"`
	Weight     float64 `json:"weight"`
	Enabled    bool    `json:"enabled"`
}
