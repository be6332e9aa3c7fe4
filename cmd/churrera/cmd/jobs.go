package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/churrera-dev/churrera/internal/core"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage persisted jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job, its prompts and its children",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job-id>",
	Short: "Print the agent conversations of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsLogs,
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a job, its children and their remote agents",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsDelete,
}

var (
	jobsListAll  bool
	jobsListJSON bool
)

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd, jobsLogsCmd, jobsDeleteCmd)

	jobsListCmd.Flags().BoolVarP(&jobsListAll, "all", "a", false, "Include finished and child jobs")
	jobsListCmd.Flags().BoolVar(&jobsListJSON, "json", false, "Output as JSON")
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	all, err := a.repo.FindAll(cmd.Context())
	if err != nil {
		return err
	}
	var shown []core.Job
	for _, j := range all {
		if jobsListAll || (!j.Status.IsTerminal() && !j.IsChild()) {
			shown = append(shown, j)
		}
	}

	if jobsListJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(shown)
	}
	printJobTable(cmd.OutOrStdout(), shown, time.Now())
	return nil
}

func printJobTable(w io.Writer, list []core.Job, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No jobs.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tAGENT\tUPDATED\tWORKFLOW")
	for _, j := range list {
		typ := string(j.Type)
		if j.IsChild() {
			typ = "CHILD"
		}
		if typ == "" {
			typ = "-"
		}
		agent := j.AgentID
		if agent == "" {
			agent = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s ago\t%s\n",
			j.ID, typ, j.Status, agent, now.Sub(j.LastUpdate).Round(time.Second), j.Path)
	}
	_ = tw.Flush()
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	details, err := a.repo.FindJobWithDetails(cmd.Context(), args[0])
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("job %s not found", args[0])
		}
		return err
	}
	children, err := a.repo.FindChildren(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printJobDetails(cmd.OutOrStdout(), details, children)
	return nil
}

func printJobDetails(w io.Writer, d core.JobDetails, children []core.Job) {
	j := d.Job
	fmt.Fprintf(w, "Job:        %s\n", j.ID)
	fmt.Fprintf(w, "Workflow:   %s\n", j.Path)
	fmt.Fprintf(w, "Status:     %s\n", j.Status)
	if j.AgentID != "" {
		fmt.Fprintf(w, "Agent:      %s\n", j.AgentID)
	}
	fmt.Fprintf(w, "Model:      %s\n", j.Model)
	fmt.Fprintf(w, "Repository: %s\n", j.Repository)
	if timeout, ok := j.Timeout(); ok {
		fmt.Fprintf(w, "Timeout:    %s\n", timeout)
	}
	if j.HasFallback() {
		fmt.Fprintf(w, "Fallback:   %s (executed: %v)\n", j.FallbackSrc, j.FallbackExecuted)
	}
	if len(d.Prompts) > 0 {
		fmt.Fprintln(w, "Prompts:")
		for _, p := range d.Prompts {
			src := p.Src
			if src == "" {
				src = "(inline)"
			}
			fmt.Fprintf(w, "  %d  %-7s %s\n", p.Ordinal, p.Status, src)
		}
	}
	if len(children) > 0 {
		fmt.Fprintln(w, "Children:")
		for _, c := range children {
			fmt.Fprintf(w, "  %s  %s\n", c.ID, c.Status)
		}
	}
	if j.Result != "" {
		fmt.Fprintf(w, "Result:\n%s\n", j.Result)
	}
}

func runJobsLogs(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	convs, err := a.engine.Logs.Conversations(cmd.Context(), args[0])
	out := cmd.OutOrStdout()
	for _, c := range convs {
		fmt.Fprintf(out, "=== %s (agent %s, %s)\n", c.Job.ID, c.Job.AgentID, c.Job.Status)
		for _, m := range c.Messages {
			fmt.Fprintf(out, "[%s]\n%s\n\n", m.Type, m.Text)
		}
	}
	return err
}

func runJobsDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Deletion.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", args[0])
	return nil
}
