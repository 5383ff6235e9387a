package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mir00r/giftcert-router/internal/config"
	"github.com/mir00r/giftcert-router/internal/container"
	"github.com/mir00r/giftcert-router/internal/service"
)

// adminTimeout bounds one-off commands that touch the databases
const adminTimeout = 30 * time.Second

// loadCore loads the configuration and wires the selection components
func loadCore() (*container.Container, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, closeLog, err := container.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	core, err := container.NewCore(cfg, log)
	if err != nil {
		closeLog()
		return nil, nil, err
	}

	return core, func() {
		core.Close()
		closeLog()
	}, nil
}

// runConfigValidation validates the current configuration
func runConfigValidation(out io.Writer) error {
	core, closeCore, err := loadCore()
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	defer closeCore()

	replicas, err := core.Registry.Load()
	if err != nil {
		return fmt.Errorf("replica list is invalid: %w", err)
	}
	cfg := core.Config

	fmt.Fprintln(out, "Configuration validation passed")
	fmt.Fprintf(out, "Environment: %s\n", cfg.Environment)
	fmt.Fprintf(out, "Service: %s\n", cfg.ServiceName)
	fmt.Fprintf(out, "Port: %d\n", cfg.Server.Port)
	fmt.Fprintf(out, "Driver: %s\n", cfg.Database.Driver)
	fmt.Fprintf(out, "Replicas: %d\n", len(replicas))
	fmt.Fprintf(out, "Probe timeout: %s\n", cfg.Database.Timeout)
	fmt.Fprintf(out, "Rate limiting: %t\n", cfg.RateLimit.Enabled)
	fmt.Fprintf(out, "Auth: %t\n", cfg.Auth.Enabled)

	return nil
}

// runProbe probes every replica once, in configuration order
func runProbe(out io.Writer) error {
	core, closeCore, err := loadCore()
	if err != nil {
		return err
	}
	defer closeCore()

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	reports, err := service.ProbeReplicas(ctx, core.Registry, core.Prober)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tTYPE\tPRIORITY\tSTATUS\tELAPSED")
	failed := 0
	for _, report := range reports {
		status := report.Status
		if report.Error != "" {
			status = fmt.Sprintf("%s: %s", report.Status, report.Error)
			failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%dms\n", report.Target, report.Role, report.Priority, status, report.ElapsedMS)
	}
	w.Flush()

	if failed == len(reports) && failed > 0 {
		return fmt.Errorf("no replica is reachable")
	}
	return nil
}

// runSelect runs one selection and prints the chosen replica
func runSelect(out io.Writer) error {
	core, closeCore, err := loadCore()
	if err != nil {
		return err
	}
	defer closeCore()

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	conn, err := core.Selector.Select(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintf(out, "Selected %s (%s)\n", conn.TargetWithoutCredentials, conn.Role)
	return nil
}

// runStats lists the configured replicas
func runStats(out io.Writer) error {
	core, closeCore, err := loadCore()
	if err != nil {
		return err
	}
	defer closeCore()

	reports, err := service.DescribeReplicas(core.Registry)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Total replicas: %d\n", len(reports))
	for i, report := range reports {
		fmt.Fprintf(out, "  Replica %d: %s (Type: %s, Priority: %d)\n", i+1, report.Target, report.Role, report.Priority)
	}
	return nil
}

// runAdminProcess handles admin process execution
func runAdminProcess() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: giftcert-router -admin <command>")
		fmt.Println("Commands:")
		fmt.Println("  validate-config - Validate configuration")
		fmt.Println("  probe           - Probe every replica once")
		fmt.Println("  select          - Run one connection selection")
		fmt.Println("  stats           - List configured replicas")
		os.Exit(1)
	}

	command := os.Args[2]
	var err error

	switch command {
	case "validate-config", "validate":
		err = runConfigValidation(os.Stdout)
	case "probe", "health-check":
		err = runProbe(os.Stdout)
	case "select":
		err = runSelect(os.Stdout)
	case "stats":
		err = runStats(os.Stdout)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command failed: %v\n", err)
		os.Exit(1)
	}
}

// checkIfAdminMode checks if running in admin mode
func checkIfAdminMode() bool {
	for _, arg := range os.Args {
		if arg == "-admin" {
			return true
		}
	}
	return false
}
