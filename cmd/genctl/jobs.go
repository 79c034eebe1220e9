package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessment-jobs/internal/client"
	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/models"

	"github.com/spf13/cobra"
)

var submitFlags struct {
	title     string
	docs      []string
	questions int
	mode      string
	start     string
	timezone  string
	resource  string
	wait      bool
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Create a generation job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &models.CreateJobRequest{
			Title:          submitFlags.title,
			DocumentIDs:    submitFlags.docs,
			QuestionCount:  submitFlags.questions,
			SchedulingMode: models.SchedulingMode(submitFlags.mode),
			StartTime:      submitFlags.start,
			Timezone:       submitFlags.timezone,
			ResourceID:     submitFlags.resource,
		}

		if !submitFlags.wait {
			submitter := client.NewSubmitter(api)
			resp, token, err := submitter.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			defer submitter.Release(token)
			fmt.Printf("job %s queued for resource %s\n", resp.JobID, resp.ResourceID)
			return nil
		}

		session := client.NewSession(api, pollerConfig(), cfg.MaxRetries)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			session.Cancel()
		}()

		result, err := session.Run(ctx, req, printUpdate)
		return report(result, err)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the current status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := api.PollStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("job %s: %s %d%%", status.JobID, status.Status, status.Progress)
		if status.Message != "" {
			fmt.Printf(" (%s)", status.Message)
		}
		fmt.Println()
		if status.Error != nil {
			fmt.Printf("error [%s]: %s\n", status.Error.Code, status.Error.Message)
		}
		return nil
	},
}

var waitResource string

var waitCmd = &cobra.Command{
	Use:   "wait <job-id>",
	Short: "Poll an existing job until it settles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := client.NewPoller(api, pollerConfig()).Poll(ctx, args[0], waitResource, printUpdate)
		return report(result, err)
	},
}

func printUpdate(u client.Update) {
	marker := ""
	if u.Estimated {
		marker = "~"
	}
	line := fmt.Sprintf("[%s] %s%d%% %s", u.Status, marker, u.Progress, u.Advisory)
	if u.Message != "" {
		line += " | " + u.Message
	}
	fmt.Fprintln(os.Stderr, line)
}

func report(result *client.Result, err error) error {
	switch {
	case errors.Is(err, client.ErrCancelled), errors.Is(err, context.Canceled):
		fmt.Println("cancelled")
		return nil
	case errors.Is(err, errors.ErrTimeout) && result != nil:
		fmt.Printf("job %s is still running; check later with: genctl status %s\n", result.JobID, result.JobID)
		return err
	case err != nil:
		return err
	}

	switch result.Outcome {
	case client.OutcomeCompleted:
		suffix := ""
		if result.Recovered {
			suffix = " (confirmed via resource lookup)"
		}
		fmt.Printf("resource %s generated in %s%s\n", result.ResourceID, result.Elapsed.Round(time.Second), suffix)
		return nil
	case client.OutcomeFailed:
		return errors.GenerationFailuref("job %s failed: %s", result.JobID, result.Error.Message)
	default:
		return errors.Newf("job %s ended as %s", result.JobID, result.Outcome)
	}
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFlags.title, "title", "", "assessment title")
	f.StringArrayVar(&submitFlags.docs, "doc", nil, "source document id (repeatable)")
	f.IntVar(&submitFlags.questions, "questions", 0, "number of questions, 0 for the server default")
	f.StringVar(&submitFlags.mode, "mode", string(models.ScheduleDeferred), "scheduling mode: immediate or deferred")
	f.StringVar(&submitFlags.start, "start", "", "local start time for immediate mode, e.g. 2026-03-01T09:30")
	f.StringVar(&submitFlags.timezone, "tz", "", "IANA timezone of --start")
	f.StringVar(&submitFlags.resource, "resource", "", "regenerate into an existing draft")
	f.BoolVar(&submitFlags.wait, "wait", false, "poll until the job settles, retrying failures")
	submitCmd.MarkFlagRequired("title")

	waitCmd.Flags().StringVar(&waitResource, "resource", "", "resource id used for the fallback check")
}
