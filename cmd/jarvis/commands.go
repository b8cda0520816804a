package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/jarvis/internal/config"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send a message through the assistant workflow",
	Long: `Send a message through the assistant workflow.

Examples:
  jarvis chat --telegram-id 12345 "remind me to call mom at 18:00"
  jarvis chat --telegram-id 12345 "what documents mention the lease?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		telegramID, _ := cmd.Flags().GetInt64("telegram-id")
		if telegramID == 0 {
			return fmt.Errorf("--telegram-id is required")
		}
		message := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/chat", map[string]any{
			"telegram_id": telegramID,
			"message":     message,
		})
		if err != nil {
			return err
		}

		var result struct {
			Response string `json:"response"`
			Intent   string `json:"intent"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Printf("%s %s\n", colorize(colorCyan, "["+result.Intent+"]"), result.Response)
		return nil
	},
}

func init() {
	chatCmd.Flags().Int64("telegram-id", 0, "telegram user id to act as")
}

// --- connections ---

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage cloud storage connections",
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cloud storage connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")
		if userID == "" {
			return fmt.Errorf("--user-id is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/connections?user_id=" + userID)
		if err != nil {
			return err
		}

		var conns []struct {
			ID             string `json:"id"`
			Provider       string `json:"provider"`
			Name           string `json:"name"`
			SyncEnabled    bool   `json:"sync_enabled"`
			LastSyncStatus string `json:"last_sync_status"`
			LastSyncAt     string `json:"last_sync_at"`
		}
		if err := decodeJSON(resp, &conns); err != nil {
			return err
		}

		if len(conns) == 0 {
			fmt.Println("No connections found.")
			return nil
		}

		for _, c := range conns {
			status := c.LastSyncStatus
			if status == "" {
				status = "never synced"
			}
			fmt.Printf("%s  %-12s %-20s %s\n",
				colorize(colorCyan, c.ID[:8]),
				c.Provider,
				c.Name,
				status,
			)
		}
		return nil
	},
}

var connectionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a cloud storage connection",
	Long: `Create a cloud storage connection.

Examples:
  jarvis connections add --telegram-id 12345 --provider yandex_disk \
    --credentials-file ./yandex.json --path /Documents --extensions .pdf,.md
  jarvis connections add --telegram-id 12345 --provider icloud \
    --credentials-file ./icloud.json --auto-sync --interval 3600`,
	RunE: func(cmd *cobra.Command, args []string) error {
		telegramID, _ := cmd.Flags().GetInt64("telegram-id")
		provider, _ := cmd.Flags().GetString("provider")
		credsFile, _ := cmd.Flags().GetString("credentials-file")
		name, _ := cmd.Flags().GetString("name")
		syncPath, _ := cmd.Flags().GetString("path")
		extensions, _ := cmd.Flags().GetString("extensions")
		excludes, _ := cmd.Flags().GetString("exclude")
		includes, _ := cmd.Flags().GetString("include")
		autoSync, _ := cmd.Flags().GetBool("auto-sync")
		interval, _ := cmd.Flags().GetInt("interval")

		if telegramID == 0 {
			return fmt.Errorf("--telegram-id is required")
		}
		if provider == "" {
			return fmt.Errorf("--provider is required")
		}
		if credsFile == "" {
			return fmt.Errorf("--credentials-file is required")
		}

		creds, err := os.ReadFile(credsFile)
		if err != nil {
			return fmt.Errorf("reading credentials file: %w", err)
		}

		req := map[string]any{
			"telegram_id": telegramID,
			"provider":    provider,
			"name":        name,
			"credentials": string(creds),
			"sync_path":   syncPath,
			"auto_sync":   autoSync,
		}
		if extensions != "" {
			req["file_extensions"] = splitTrim(extensions)
		}
		if excludes != "" {
			req["exclude_patterns"] = splitTrim(excludes)
		}
		if includes != "" {
			req["included_paths"] = splitTrim(includes)
		}
		if interval > 0 {
			req["sync_interval_seconds"] = interval
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/connections", req)
		if err != nil {
			return err
		}

		var result struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Created connection %s", result.ID)
		return nil
	},
}

var connectionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/connections/" + args[0])
		if err != nil {
			return err
		}

		var conn any
		if err := decodeJSON(resp, &conn); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(conn)
	},
}

var connectionsSyncCmd = &cobra.Command{
	Use:   "sync <id>",
	Short: "Trigger a sync for a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/connections/"+args[0]+"/sync", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Sync started, job %s", result["job_id"])
		return nil
	},
}

var connectionsStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show sync progress for a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/connections/" + args[0] + "/status")
		if err != nil {
			return err
		}

		var status any
		if err := decodeJSON(resp, &status); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

var connectionsJobsCmd = &cobra.Command{
	Use:   "jobs <id>",
	Short: "List recent sync jobs for a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(fmt.Sprintf("/connections/%s/jobs?limit=%d", args[0], limit))
		if err != nil {
			return err
		}

		var jobs []struct {
			ID             string `json:"id"`
			Status         string `json:"status"`
			TotalFiles     int    `json:"total_files"`
			ProcessedFiles int    `json:"processed_files"`
			FailedFiles    int    `json:"failed_files"`
		}
		if err := decodeJSON(resp, &jobs); err != nil {
			return err
		}

		if len(jobs) == 0 {
			fmt.Println("No sync jobs found.")
			return nil
		}

		for _, j := range jobs {
			fmt.Printf("%s  %-12s %d/%d files, %d failed\n",
				colorize(colorCyan, j.ID[:8]),
				j.Status,
				j.ProcessedFiles,
				j.TotalFiles,
				j.FailedFiles,
			)
		}
		return nil
	},
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func init() {
	connectionsListCmd.Flags().String("user-id", "", "internal user id")

	connectionsAddCmd.Flags().Int64("telegram-id", 0, "telegram user id owning the connection")
	connectionsAddCmd.Flags().String("provider", "", "provider: yandex_disk or icloud")
	connectionsAddCmd.Flags().String("credentials-file", "", "path to provider credentials JSON")
	connectionsAddCmd.Flags().String("name", "", "display name for the connection")
	connectionsAddCmd.Flags().String("path", "", "remote path to sync from")
	connectionsAddCmd.Flags().String("extensions", "", "comma-separated file extensions to sync")
	connectionsAddCmd.Flags().String("exclude", "", "comma-separated path substrings to exclude")
	connectionsAddCmd.Flags().String("include", "", "comma-separated path prefixes to include")
	connectionsAddCmd.Flags().Bool("auto-sync", false, "enable periodic automatic sync")
	connectionsAddCmd.Flags().Int("interval", 0, "auto-sync interval in seconds")

	connectionsJobsCmd.Flags().Int("limit", 10, "maximum number of jobs to list")

	connectionsCmd.AddCommand(connectionsListCmd)
	connectionsCmd.AddCommand(connectionsAddCmd)
	connectionsCmd.AddCommand(connectionsShowCmd)
	connectionsCmd.AddCommand(connectionsSyncCmd)
	connectionsCmd.AddCommand(connectionsStatusCmd)
	connectionsCmd.AddCommand(connectionsJobsCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
