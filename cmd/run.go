package cmd

import (
	"time"

	"github.com/kiptoo/ignite/internal/bootstrap"
	"github.com/kiptoo/ignite/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	runParallel      int
	runStepDelay     time.Duration
	runBackoff       time.Duration
	runMaxRetries    int
	runFailTasks     []string
	runFlakyTasks    []string
	runFailFallbacks []string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the startup sequence",
		Long: `Run the simulated startup sequence. Failure-injection flags make
individual subsystems fail persistently or transiently, which exercises the
retry, fallback and criticality handling.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			retry := scheduler.NewDefaultRetryPolicy()
			if runBackoff > 0 {
				retry.InitialBackoff = runBackoff
			}

			b, err := bootstrap.New(bootstrap.Options{
				Parallelism: runParallel,
				Retry:       retry,
				Sim: bootstrap.SimOptions{
					StepDelay:     runStepDelay,
					FailTasks:     runFailTasks,
					FlakyTasks:    runFlakyTasks,
					FailFallbacks: runFailFallbacks,
					MaxRetries:    runMaxRetries,
				},
			})
			if err != nil {
				return err
			}
			defer b.Tracker().Close()

			return b.Run(cmd.Context())
		},
	}
)

func init() {
	runCmd.Flags().IntVar(&runParallel, "parallel", 1, "Maximum tasks to run concurrently per pass")
	runCmd.Flags().DurationVar(&runStepDelay, "step-delay", 150*time.Millisecond, "Simulated work time per initializer attempt")
	runCmd.Flags().DurationVar(&runBackoff, "backoff", 500*time.Millisecond, "Initial retry backoff")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 0, "Override every task's retry budget (0 keeps defaults)")
	runCmd.Flags().StringSliceVar(&runFailTasks, "fail", nil, "Subsystems whose initializer always fails")
	runCmd.Flags().StringSliceVar(&runFlakyTasks, "flaky", nil, "Subsystems whose initializer fails once, then succeeds")
	runCmd.Flags().StringSliceVar(&runFailFallbacks, "fail-fallback", nil, "Subsystems whose fallback also fails")

	rootCmd.AddCommand(runCmd)
}
