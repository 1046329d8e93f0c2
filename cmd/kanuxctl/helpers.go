package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kanux/kanuxd/internal/config"
	"github.com/kanux/kanuxd/internal/profile"
)

// daemonURL resolves the base URL of the local daemon API, preferring the
// --addr flag over the configured listen address.
func daemonURL() (string, error) {
	if addrFlag != "" {
		return "http://" + addrFlag, nil
	}
	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return "http://" + cfg.Server.ListenAddr, nil
}

func apiClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// apiGet issues a GET against the daemon and decodes the JSON response.
func apiGet(path string, dest any) error {
	base, err := daemonURL()
	if err != nil {
		return err
	}
	resp, err := apiClient().Get(base + path)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	return decode(resp, dest)
}

// apiPost issues a POST with a JSON body and decodes the JSON response.
func apiPost(path string, body, dest any) error {
	base, err := daemonURL()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := apiClient().Post(base+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	return decode(resp, dest)
}

func decode(resp *http.Response, dest any) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
