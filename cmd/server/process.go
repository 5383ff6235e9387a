package main

import (
	"os"
	"strconv"

	"github.com/mir00r/giftcert-router/internal/config"
)

// getProcessInfo returns process information for logging
func getProcessInfo() map[string]interface{} {
	return map[string]interface{}{
		"pid":      os.Getpid(),
		"ppid":     os.Getppid(),
		"hostname": getHostname(),
	}
}

// getHostname safely gets hostname
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// getPort lets the platform's PORT variable override the configured port
func getPort(defaultPort int) int {
	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 && port <= 65535 {
			return port
		}
	}
	return defaultPort
}

// getConfigSource returns the configuration source for logging
func getConfigSource(cfg *config.Config) string {
	if cfg.Source != "" {
		return "file+env"
	}
	return "env"
}
