// Package normalize implements the batch job that reconciles heterogeneous
// raw event records into the fixed USER_ID, ITEM_ID, TIMESTAMP interaction
// schema and materializes them as a single CSV artifact.
package normalize

import (
	"strings"

	pipeerrors "github.com/eventlake/eventlake/internal/errors"
)

// Job holds the required parameters of one normalization run.
type Job struct {
	JobName      string `json:"job_name" yaml:"job_name"`
	Bucket       string `json:"bucket" yaml:"bucket"`
	InputPrefix  string `json:"input_prefix" yaml:"input_prefix"`
	OutputPrefix string `json:"output_prefix" yaml:"output_prefix"`
}

// Validate checks that every parameter is present.
func (j Job) Validate() error {
	missing := make([]string, 0, 4)
	if j.JobName == "" {
		missing = append(missing, "job_name")
	}
	if j.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if strings.Trim(j.InputPrefix, "/") == "" {
		missing = append(missing, "input_prefix")
	}
	if strings.Trim(j.OutputPrefix, "/") == "" {
		missing = append(missing, "output_prefix")
	}
	if len(missing) > 0 {
		return pipeerrors.NewValidationError(pipeerrors.CodeMissingParameter,
			"missing job parameters: "+strings.Join(missing, ", "))
	}
	return nil
}

// Resolved returns the job with both prefixes ending in exactly one "/".
func (j Job) Resolved() Job {
	j.InputPrefix = strings.TrimRight(j.InputPrefix, "/") + "/"
	j.OutputPrefix = strings.TrimRight(j.OutputPrefix, "/") + "/"
	return j
}

// Config tunes how a job runs.
type Config struct {
	// MaxFiles caps how many input files are enumerated.
	MaxFiles int `json:"max_files" yaml:"max_files"`

	// Concurrency bounds parallel file loads.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// IncludeHeader writes a header row. Human inspection wants one; machine
	// imports usually do not.
	IncludeHeader bool `json:"include_header" yaml:"include_header"`

	// FileName is the artifact name appended to the output prefix.
	FileName string `json:"file_name" yaml:"file_name"`

	// WorkDir holds the temporary artifact before upload. Empty means the
	// system temp directory.
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}

// DefaultConfig returns the default job configuration.
func DefaultConfig() Config {
	return Config{
		MaxFiles:      10000,
		Concurrency:   8,
		IncludeHeader: true,
		FileName:      "interactions.csv",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxFiles <= 0 {
		c.MaxFiles = d.MaxFiles
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.FileName == "" {
		c.FileName = d.FileName
	}
	return c
}

// Result reports what a run did.
type Result struct {
	Files      int    `json:"files"`
	InputRows  int    `json:"input_rows"`
	OutputRows int    `json:"output_rows"`
	Key        string `json:"key,omitempty"`
	Written    bool   `json:"written"`

	// StaleRemoved reports that a run with no qualifying rows deleted an
	// artifact left at the output key by an earlier run.
	StaleRemoved bool `json:"stale_removed,omitempty"`
}
