package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/bgloc/internal/api"
)

const clientTimeout = 10 * time.Second

// apiClient talks to a running daemon's command API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(addr string) *apiClient {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: clientTimeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, e.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newClientCommands(addr *string) []*cobra.Command {
	client := func() *apiClient { return newAPIClient(*addr) }

	status := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, activation and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client()
			var health api.StatusResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/health", nil, &health); err != nil {
				return err
			}
			var active api.ActivatedResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/v1/activated", nil, &active); err != nil {
				return err
			}
			var conf api.ConfigurationResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/v1/configuration", nil, &conf); err != nil {
				return err
			}
			return printJSON(struct {
				api.StatusResponse
				Activated     bool                      `json:"activated"`
				Configuration api.ConfigurationResponse `json:"configuration"`
			}{health, active.Activated, conf})
		},
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Activate background sampling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client().do(cmd.Context(), http.MethodPost, "/v1/start", nil, nil)
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Deactivate background sampling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client().do(cmd.Context(), http.MethodPost, "/v1/stop", nil, nil)
		},
	}

	var (
		interval  int64
		distance  float64
		mode      string
		keepAlive bool
	)
	configure := &cobra.Command{
		Use:   "configure",
		Short: "Change sampling configuration; unset flags keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var body api.ConfigurationBody
			if cmd.Flags().Changed("interval") {
				body.Interval = &interval
			}
			if cmd.Flags().Changed("distance") {
				body.DistanceFilter = &distance
			}
			if cmd.Flags().Changed("mode") {
				body.Mode = &mode
			}
			if cmd.Flags().Changed("keep-alive") {
				body.UseBackgroundActivitySessionManager = &keepAlive
			}
			if body.Update().Empty() {
				return errors.New("nothing to configure: set at least one of --interval, --distance, --mode, --keep-alive")
			}
			var out api.ConfigurationResponse
			if err := client().do(cmd.Context(), http.MethodPost, "/v1/configure", body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	configure.Flags().Int64Var(&interval, "interval", 0, "minimum seconds between delivered samples")
	configure.Flags().Float64Var(&distance, "distance", 0, "minimum meters between samples")
	configure.Flags().StringVar(&mode, "mode", "", "polling, streaming or hybrid")
	configure.Flags().BoolVar(&keepAlive, "keep-alive", false, "hold a keep-alive lease while sampling in the background")

	signalCmd := &cobra.Command{
		Use:       "signal {boot|foreground|background|config}",
		Short:     "Send a host lifecycle signal",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"boot", "foreground", "background", "config"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().do(cmd.Context(), http.MethodPost, "/v1/signals/"+args[0], nil, nil)
		},
	}

	var granted bool
	permission := &cobra.Command{
		Use:   "permission",
		Short: "Report a location permission change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client().do(cmd.Context(), http.MethodPost, "/v1/signals/permission",
				api.PermissionRequest{Granted: granted}, nil)
		},
	}
	permission.Flags().BoolVar(&granted, "granted", true, "whether permission is granted")

	return []*cobra.Command{status, start, stopCmd, configure, signalCmd, permission}
}
