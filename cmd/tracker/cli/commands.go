package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/mftcargo/tracker/jobs"
)

// RedisEnv is the subset of the environment the jobs commands need.
type RedisEnv struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// LoadRedisEnv reads RedisEnv from the environment.
func LoadRedisEnv() (asynq.RedisClientOpt, error) {
	var env RedisEnv
	if err := envconfig.Process("", &env); err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{Addr: env.Addr, Password: env.Password, DB: env.DB}, nil
}

// NewJobsCommand builds the "jobs" command tree. Each call to Redis is
// bounded by timeout.
func NewJobsCommand(timeout time.Duration) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	triggerCmd := &cobra.Command{
		Use:   "trigger <name>",
		Short: "Enqueue a job now",
		Long:  "Enqueue a job now. Known jobs: " + strings.Join(jobs.TaskNames(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := jobs.NewTask(args[0]); err != nil {
				return err
			}
			return withJobsCLI(func(c *JobsCLI) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				info, err := c.Trigger(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	}

	var scheduled int
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print queue statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsCLI(func(c *JobsCLI) error {
				stats, err := c.InspectQueue()
				if err != nil {
					return err
				}
				out := map[string]any{"queue": stats}
				if scheduled > 0 {
					tasks, err := c.ListScheduled(scheduled)
					if err != nil {
						return err
					}
					names := make([]string, 0, len(tasks))
					for _, t := range tasks {
						names = append(names, t.Type+" at "+t.NextProcessAt.UTC().Format(time.RFC3339))
					}
					out["scheduled"] = names
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}
	statsCmd.Flags().IntVar(&scheduled, "scheduled", 0, "also list up to N scheduled tasks")

	jobsCmd.AddCommand(triggerCmd, statsCmd)
	return jobsCmd
}

func withJobsCLI(fn func(*JobsCLI) error) error {
	opts, err := LoadRedisEnv()
	if err != nil {
		return err
	}
	c := NewJobsCLI(opts)
	defer func() { _ = c.Close() }()
	return fn(c)
}
