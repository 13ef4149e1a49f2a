package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// mcpServerKey names this server inside an MCP client config.
const mcpServerKey = "dxfcrop"

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s=%q: %v\n", key, v, err)
		return def
	}
	return n
}

// clientConfig builds the mcpServers entry that launches this binary
// over stdio.
func clientConfig(command string) map[string]any {
	entry := map[string]any{
		"command": command,
		"args":    []string{},
	}
	if maxDocumentBytes != 0 {
		entry["env"] = map[string]string{
			"DXFCROP_MAX_DOCUMENT_BYTES": strconv.Itoa(maxDocumentBytes),
		}
	}
	return map[string]any{
		"mcpServers": map[string]any{mcpServerKey: entry},
	}
}

// generateClientConfig writes an MCP client configuration pointing at
// this executable. With mergeOnly, other servers and top-level keys in an
// existing file are preserved.
func generateClientConfig(path string, mergeOnly bool) error {
	if path == "" {
		return fmt.Errorf("config path cannot be empty")
	}
	if !strings.HasSuffix(path, ".json") {
		return fmt.Errorf("config file must have .json extension")
	}

	cleanPath := filepath.Clean(path)
	if err := validateSafePath(cleanPath); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	config := clientConfig(exe)

	if mergeOnly {
		existing, err := readConfig(cleanPath)
		if err != nil {
			return err
		}
		config = mergeConfig(existing, config)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cleanPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func readConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read existing config: %w", err)
	}
	var existing map[string]any
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("failed to parse existing config: %w", err)
	}
	return existing, nil
}

// mergeConfig adds the servers of update to existing. Entries already
// present in existing are replaced only for this server's key.
func mergeConfig(existing, update map[string]any) map[string]any {
	if existing == nil {
		return update
	}
	servers, _ := existing["mcpServers"].(map[string]any)
	if servers == nil {
		servers = map[string]any{}
	}
	for k, v := range update["mcpServers"].(map[string]any) {
		servers[k] = v
	}
	existing["mcpServers"] = servers
	return existing
}

// validateSafePath accepts only relative paths inside the working directory.
func validateSafePath(path string) error {
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths are not allowed")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	relPath, err := filepath.Rel(cwd, absPath)
	if err != nil {
		return fmt.Errorf("failed to determine relative path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", relPath)
	}
	return nil
}
