package main

import (
	"encoding/json"
	"fmt"
	"os"

	"assessment-jobs/internal/models"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <resource-id>",
	Short: "Show a resource as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := api.GetResource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <resource-id>",
	Short: "Delete a resource, or archive it when it has dependents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := api.DeleteResource(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("resource %s %s\n", args[0], resp.Action)
		return nil
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate <resource-id>",
	Short: "Move an archived resource back to published",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patch(cmd, args[0], &models.PatchResourceRequest{Action: models.PatchActivate})
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <resource-id>",
	Short: "Archive a published resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patch(cmd, args[0], &models.PatchResourceRequest{Action: models.PatchDeactivate})
	},
}

var publishFlags struct {
	start    string
	timezone string
}

var publishCmd = &cobra.Command{
	Use:   "publish <resource-id>",
	Short: "Publish a generated draft with a start time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patch(cmd, args[0], &models.PatchResourceRequest{
			Action:    models.PatchPublish,
			StartTime: publishFlags.start,
			Timezone:  publishFlags.timezone,
		})
	},
}

func patch(cmd *cobra.Command, id string, req *models.PatchResourceRequest) error {
	resp, err := api.PatchResource(cmd.Context(), id, req)
	if err != nil {
		return err
	}
	fmt.Printf("resource %s is now %s\n", id, resp.NewStatus)
	return nil
}

func init() {
	publishCmd.Flags().StringVar(&publishFlags.start, "start", "", "local start time, e.g. 2026-03-01T09:30")
	publishCmd.Flags().StringVar(&publishFlags.timezone, "tz", "", "IANA timezone of --start")
	publishCmd.MarkFlagRequired("start")
	publishCmd.MarkFlagRequired("tz")
}
