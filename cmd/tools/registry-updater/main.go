// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"registry-workers/internal/common/config"
	"registry-workers/internal/common/errors"
	"registry-workers/internal/common/validation"
	dc "registry-workers/internal/workers/dedup/duplicate-check"
	dcb "registry-workers/internal/workers/dedup/duplicate-check-batch"
	ds "registry-workers/internal/workers/dedup/duplicate-statistics"
	"registry-workers/pkg/registry"
)

const registryVersion = "1.0.0"

func main() {
	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	generatePath := generateCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validatePath := validateCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	configPath := validateCmd.String("config", "", "Config file whose enabled workers must be registered")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		generateCmd.Parse(os.Args[2:])
		reg, err := buildRegistry(time.Now())
		if err != nil {
			fmt.Printf("Error building registry: %v\n", err)
			os.Exit(1)
		}
		if err := registry.Save(reg, *generatePath); err != nil {
			fmt.Printf("Error saving registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d activities to %s\n", len(reg.Activities), *generatePath)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Failed to load registry: %v\n", err)
			os.Exit(1)
		}
		var cfg *config.Config
		if *configPath != "" {
			if cfg, err = config.LoadFromFile(*configPath); err != nil {
				fmt.Printf("Failed to load config: %v\n", err)
				os.Exit(1)
			}
		}
		if err := validateRegistry(reg, cfg); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	default:
		help()
	}
}

func schemaMap(schema validation.JSONSchema) (map[string]interface{}, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func codes(cs ...errors.ErrorCode) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = errors.BPMNErrorMapping[c]
		if out[i] == "" {
			out[i] = string(c)
		}
	}
	return out
}

// buildRegistry describes the dedup workers from their own defaults and
// input schemas.
func buildRegistry(now time.Time) (*registry.ActivityRegistry, error) {
	batchDefaults := dcb.DefaultConfig()

	specs := []struct {
		activity registry.Activity
		schema   validation.JSONSchema
	}{
		{
			activity: registry.Activity{
				ID:          dc.TaskType,
				DisplayName: "Check Duplicate",
				Description: "Scores one candidate record against the stored records of its entity type",
				TaskType:    dc.TaskType,
				Timeout:     dc.DefaultConfig().Timeout.String(),
				Retries:     errors.GetRetryCount(errors.ErrCodeDuplicateScanFailed),
				ErrorCodes: codes(errors.ErrCodeInputParsingFailed, errors.ErrCodeValidationFailed,
					errors.ErrCodeInvalidMatchRequest, errors.ErrCodeCorpusLoadFailed, errors.ErrCodeDuplicateScanFailed),
				Tags: []string{"dedup", "matching"},
			},
			schema: dc.GetInputSchema(),
		},
		{
			activity: registry.Activity{
				ID:          dcb.TaskType,
				DisplayName: "Check Duplicates In Batch",
				Description: "Checks a batch of candidates against one corpus snapshot and summarises the outcomes",
				TaskType:    dcb.TaskType,
				Timeout:     batchDefaults.Timeout.String(),
				Retries:     errors.GetRetryCount(errors.ErrCodeCorpusLoadFailed),
				ErrorCodes:  codes(errors.ErrCodeInputParsingFailed, errors.ErrCodeValidationFailed, errors.ErrCodeCorpusLoadFailed),
				Tags:        []string{"dedup", "batch"},
			},
			schema: dcb.GetInputSchema(batchDefaults.MaxBatchSize),
		},
		{
			activity: registry.Activity{
				ID:          ds.TaskType,
				DisplayName: "Report Duplicate Statistics",
				Description: "Records reviewer resolutions and returns the found, resolved and pending counts",
				TaskType:    ds.TaskType,
				Timeout:     ds.DefaultConfig().Timeout.String(),
				ErrorCodes:  codes(errors.ErrCodeInputParsingFailed, errors.ErrCodeValidationFailed),
				Tags:        []string{"dedup", "reporting"},
			},
			schema: ds.GetInputSchema(),
		},
	}

	reg := &registry.ActivityRegistry{
		Version:     registryVersion,
		LastUpdated: now.UTC().Format(time.RFC3339),
	}
	for _, s := range specs {
		input, err := schemaMap(s.schema)
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", s.activity.TaskType, err)
		}
		a := s.activity
		a.Category = "dedup"
		a.Version = registryVersion
		a.InputSchema = input
		reg.Activities = append(reg.Activities, a)
	}
	return reg, nil
}

// validateRegistry checks reg and, when cfg is given, that every enabled
// worker in it is registered.
func validateRegistry(reg *registry.ActivityRegistry, cfg *config.Config) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}
	for taskType, w := range cfg.Workers {
		if !w.Enabled {
			continue
		}
		if _, ok := reg.Find(taskType); !ok {
			return fmt.Errorf("enabled worker %s has no activity entry", taskType)
		}
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  generate  Write the activity registry for the dedup workers
  validate  Validate the registry file, optionally against a config file

Examples:
  registry-updater generate -path configs/activity-registry.json
  registry-updater validate -path configs/activity-registry.json -config configs/config.yaml
` + "\n")
}
