// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"prospect-workers/internal/common/config"
	"prospect-workers/pkg/registry"
)

const defaultRegistryPath = "configs/activity-registry.json"

func main() {
	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	syncPath := syncCmd.String("path", defaultRegistryPath, "Path to registry file")
	syncConfig := syncCmd.String("config", "configs/config.yaml", "Service config providing worker timeouts")
	syncVersion := syncCmd.String("version", "1.0.0", "Version stamped on every activity")
	syncStatus := syncCmd.String("status", "completed", "Status for activities not yet in the registry")

	updatePath := updateCmd.String("path", defaultRegistryPath, "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Activity ID to update")
	field := updateCmd.String("field", "", "Field to update (status, version, description)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultRegistryPath, "Path to registry file")
	listPath := listCmd.String("path", defaultRegistryPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		syncCmd.Parse(os.Args[2:])
		n, err := syncRegistry(*syncPath, *syncConfig, *syncVersion, *syncStatus)
		if err != nil {
			fmt.Printf("Error syncing registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Synced %d activities into %s\n", n, *syncPath)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s: %s = %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		if err := reg.Validate(); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		if missing := missingTaskTypes(reg); len(missing) > 0 {
			fmt.Printf("Validation failed: registered workers missing from registry: %v\n", missing)
			os.Exit(1)
		}
		fmt.Printf("Registry is valid (%d activities)\n", len(reg.Activities))

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*listPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		for _, a := range reg.Activities {
			fmt.Printf("%-20s %-10s %-12s %s\n", a.TaskType, a.Category, a.ImplementationStatus, a.Timeout)
		}

	default:
		help()
		os.Exit(1)
	}
}

func syncRegistry(path, configPath, version, status string) (int, error) {
	cfg, err := loadWorkerSection(configPath)
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}

	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return 0, err
		}
		reg = &registry.ActivityRegistry{}
	}

	entries := catalog()
	for _, e := range entries {
		a := buildActivity(e, cfg, version)
		if _, ok := reg.Find(a.TaskType); !ok {
			a.ImplementationStatus = status
		}
		reg.Upsert(a)
	}
	reg.Version = version
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)

	if err := reg.Validate(); err != nil {
		return 0, err
	}
	return len(entries), reg.Save(path)
}

// loadWorkerSection reads only the workers section so sync runs without the
// connection settings the full loader validates.
func loadWorkerSection(path string) (*config.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	cfg := &config.Config{}
	if err := v.UnmarshalKey("workers", &cfg.Workers); err != nil {
		return nil, err
	}
	return cfg, nil
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	a, ok := reg.Find(id)
	if !ok {
		return fmt.Errorf("activity with ID %s not found", id)
	}
	switch field {
	case "status":
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "description":
		a.Description = value
	default:
		return fmt.Errorf("unsupported field for update: %s", field)
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return reg.Save(path)
}

func missingTaskTypes(reg *registry.ActivityRegistry) []string {
	var missing []string
	for _, e := range catalog() {
		if _, ok := reg.Find(e.taskType); !ok {
			missing = append(missing, e.taskType)
		}
	}
	return missing
}

func help() {
	fmt.Println("Usage: registry-updater <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  sync      Regenerate activities from the registered workers")
	fmt.Println("  update    Update a field of an existing activity")
	fmt.Println("  validate  Validate the registry file")
	fmt.Println("  list      Print the registered activities")
	fmt.Println("\nExamples:")
	fmt.Println("  registry-updater sync -config configs/config.yaml")
	fmt.Println("  registry-updater update -id verify-email -field status -value verified")
	fmt.Println("  registry-updater validate")
}
