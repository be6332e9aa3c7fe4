package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
	"github.com/churrera-dev/churrera/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workflow file to completion",
	Long: `Create a job from a workflow file and drive it, and any child jobs, to
completion. The exit code is 0 when the job ends successfully and 1 otherwise,
including when the run is interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWorkflow,
}

var (
	runWorkflowPath       string
	runDeleteOnCompletion bool
	runDeleteOnSuccess    bool
	runShowLogs           bool
	runPollingInterval    time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runWorkflowPath, "workflow", "w", "", "Workflow file to run (required)")
	runCmd.Flags().BoolVar(&runDeleteOnCompletion, "delete-on-completion", false, "Delete the job and its agents when it finishes")
	runCmd.Flags().BoolVar(&runDeleteOnSuccess, "delete-on-success-completion", false, "Delete the job and its agents when it finishes successfully")
	runCmd.Flags().BoolVar(&runShowLogs, "show-logs", false, "Print agent conversations when the job finishes")
	runCmd.Flags().DurationVar(&runPollingInterval, "polling-interval", 0, "Pause between polling cycles (default from config)")
	_ = runCmd.MarkFlagRequired("workflow")
	_ = viper.BindPFlag("polling.interval", runCmd.Flags().Lookup("polling-interval"))
}

func runWorkflow(cmd *cobra.Command, _ []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	job, err := a.engine.Creation.Create(ctx, runWorkflowPath)
	if err != nil {
		return err
	}
	log := a.logger.WithJob(job.ID).WithWorkflow(job.Path)
	log.Info("running workflow", "type", job.Type, "interval", a.engine.Polling.Interval())

	done := make(chan struct{})
	sub := a.bus.Subscribe()
	go func() {
		defer close(done)
		logEvents(log, sub)
	}()

	result, err := a.engine.Polling.Execute(ctx, job.ID)
	a.bus.Unsubscribe(sub)
	<-done
	if err != nil {
		return err
	}
	reportResult(cmd, job.ID, result)

	// Cleanup runs after an interrupt too, so it gets its own context.
	cleanupCtx, cancel := signalContext()
	defer cancel()
	if runShowLogs && !result.Interrupted {
		if err := a.engine.Logs.Log(cleanupCtx, job.ID); err != nil {
			log.Warn("reading agent conversations", "error", err)
		}
	}
	if _, err := a.engine.Deletion.HandleCompletion(cleanupCtx, job.ID, result, runDeleteOnCompletion, runDeleteOnSuccess); err != nil {
		log.Warn("deleting finished job", "error", err)
	}

	if code := result.ExitCode(); code != 0 {
		return ExitError{Code: code}
	}
	return nil
}

func logEvents(log *logging.Logger, ch <-chan events.Event) {
	for e := range ch {
		switch ev := e.(type) {
		case events.JobLaunchedEvent:
			log.Debug("event: agent launched", "event_job", ev.JobID(), "agent_id", ev.AgentID)
		case events.PromptSentEvent:
			log.Debug("event: prompt sent", "event_job", ev.JobID(), "ordinal", ev.Ordinal)
		case events.FallbackExecutedEvent:
			log.Info("event: fallback executed", "event_job", ev.JobID(), "mode", ev.Mode)
		case events.ChildrenCreatedEvent:
			log.Info("event: children created", "count", len(ev.ChildIDs))
		default:
			log.Debug("event", "type", e.EventType(), "event_job", e.JobID())
		}
	}
}

func reportResult(cmd *cobra.Command, jobID string, result core.ExecutionResult) {
	out := cmd.OutOrStdout()
	status := "UNKNOWN"
	switch {
	case result.FinalStatus != nil:
		status = result.FinalStatus.String()
	case result.LastStatus != "":
		status = result.LastStatus.String()
	}
	if result.Interrupted {
		fmt.Fprintf(out, "Job %s interrupted (last status %s)\n", jobID, status)
		return
	}
	fmt.Fprintf(out, "Job %s finished: %s\n", jobID, status)
	for _, c := range result.ChildJobs {
		fmt.Fprintf(out, "  child %s: %s\n", c.ID, c.Status)
	}
}
