package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

const (
	PromptFollow  = "Follow the running evaluation"
	PromptRestart = "Start a new evaluation"
	PromptCancel  = "Cancel"
)

const pollInterval = time.Second

var errExit = errors.New("exit requested")

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <handle>",
	Short: "Submit a skill evaluation for a GitHub handle",
	Args:  cobra.ExactArgs(1),
	RunE:  evaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().BoolP("force", "f", false, "start a new job even if one is already live for the handle")
	evaluateCmd.Flags().BoolP("wait", "w", false, "wait for the job to finish")
	evaluateCmd.Flags().Bool("inline", false, "run the job in this process instead of queueing it (implies --wait)")
	evaluateCmd.Flags().BoolP("yes", "y", false, "do not ask what to do when a job is already live, follow it")
}

func evaluate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	force, _ := cmd.Flags().GetBool("force")
	wait, _ := cmd.Flags().GetBool("wait")
	inline, _ := cmd.Flags().GetBool("inline")
	yes, _ := cmd.Flags().GetBool("yes")

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	workerConfig, err := newWorkerConfig(ctx, cfg, log, !inline)
	if err != nil {
		return err
	}
	defer workerConfig.Close()

	orchestrator := workerConfig.Orchestrator
	var pool *evaluation.Pool
	if inline {
		pool = evaluation.NewPool(1, cfg.Worker.Buffer, log.Named("pool"))
		orchestrator.SetDispatcher(pool)
		pool.Start(ctx, orchestrator)
		defer pool.Close()
	}

	sub, err := orchestrator.Submit(ctx, evaluation.SubmitRequest{Handle: args[0], Force: force})
	if err != nil {
		return err
	}

	if sub.Coalesced {
		if !yes {
			sub, err = resolveLiveJob(ctx, orchestrator, sub)
			if errors.Is(err, errExit) {
				return nil
			}
			if err != nil {
				return err
			}
		}
		// A job this process did not enqueue; the start guard makes a
		// second runner harmless.
		if inline && sub.Coalesced {
			if err := pool.Dispatch(ctx, sub.JobID); err != nil {
				return err
			}
		}
	}

	if err := printJSON(cmd.OutOrStdout(), sub); err != nil {
		return err
	}
	if !wait && !inline {
		return nil
	}

	job, err := waitForJob(ctx, orchestrator, sub.JobID, logger.ForJob(log, sub.JobID.String(), sub.Handle))
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), job); err != nil {
		return err
	}
	if job.Status == models.JobError {
		return fmt.Errorf("evaluation failed: %s", job.Error)
	}
	return nil
}

func resolveLiveJob(ctx context.Context, orchestrator *evaluation.Orchestrator, sub evaluation.Submission) (evaluation.Submission, error) {
	prompt := promptui.Select{
		Label: fmt.Sprintf("An evaluation for %s is already live (job %s)", sub.Handle, sub.JobID),
		Items: []string{PromptFollow, PromptRestart, PromptCancel},
	}
	_, result, err := prompt.Run()
	if err != nil {
		return sub, fmt.Errorf("prompt failed: %w", err)
	}

	switch result {
	case PromptFollow:
		return sub, nil
	case PromptRestart:
		return orchestrator.Submit(ctx, evaluation.SubmitRequest{Handle: sub.Handle, Force: true})
	default:
		return sub, errExit
	}
}

// waitForJob polls until the job reaches a terminal status.
func waitForJob(ctx context.Context, orchestrator *evaluation.Orchestrator, jobID uuid.UUID, log *zap.Logger) (models.Job, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := -1
	for {
		job, err := orchestrator.GetJob(context.WithoutCancel(ctx), jobID)
		if err != nil {
			return models.Job{}, err
		}
		if job.Progress != last {
			log.Info("evaluation progress", zap.String("status", string(job.Status)), zap.Int("progress", job.Progress))
			last = job.Progress
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}
