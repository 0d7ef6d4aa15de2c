package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type pluginStatus struct {
	PluginID      string          `json:"plugin_id"`
	DisplayName   string          `json:"display_name"`
	Version       string          `json:"version"`
	Status        string          `json:"status"`
	HealthMessage string          `json:"health_message"`
	Detail        json.RawMessage `json:"detail"`
}

type accessory struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"display_name"`
	PluginID    string `json:"plugin_id"`
	PlatformID  string `json:"platform_id"`
}

type statusResponse struct {
	Plugins     []pluginStatus `json:"plugins"`
	Accessories []accessory    `json:"accessories"`
}

func statusCmd(ctx context.Context, args []string) {
	flags := flag.NewFlagSet("status", flag.ExitOnError)
	asJSON := flags.Bool("json", false, "print raw JSON")
	_ = flags.Parse(args)
	out := outputMode{json: *asJSON}

	path := "/status"
	if flags.NArg() > 0 {
		path += "/" + flags.Arg(0)
	}

	body, err := fetch(ctx, "http://"+resolveHTTPAddr()+path)
	if err != nil {
		fatal("status", err)
	}

	if flags.NArg() > 0 {
		var plugin pluginStatus
		if err := json.Unmarshal(body, &plugin); err != nil {
			fatal("decode status", err)
		}
		if out.json {
			out.printJSON(plugin)
			return
		}
		fmt.Printf("id: %s\n", plugin.PluginID)
		fmt.Printf("name: %s\n", plugin.DisplayName)
		fmt.Printf("version: %s\n", plugin.Version)
		fmt.Printf("status: %s\n", plugin.Status)
		if plugin.HealthMessage != "" {
			fmt.Printf("health: %s\n", plugin.HealthMessage)
		}
		if len(plugin.Detail) > 0 {
			fmt.Printf("detail: %s\n", strings.TrimSpace(string(plugin.Detail)))
		}
		return
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		fatal("decode status", err)
	}
	if out.json {
		out.printJSON(resp)
		return
	}

	rows := [][]string{{"PLUGIN", "NAME", "VERSION", "STATUS", "MESSAGE"}}
	for _, p := range resp.Plugins {
		rows = append(rows, []string{p.PluginID, p.DisplayName, p.Version, p.Status, p.HealthMessage})
	}
	out.table(rows)
	fmt.Println()

	rows = [][]string{{"ACCESSORY", "UUID", "PLATFORM"}}
	for _, acc := range resp.Accessories {
		rows = append(rows, []string{acc.DisplayName, acc.UUID, acc.PlatformID})
	}
	out.table(rows)
	fmt.Printf("%d accessories\n", len(resp.Accessories))
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http %d", url, resp.StatusCode)
	}
	return body, nil
}
