package main

import (
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
	"github.com/muhammadolammi/skillmatchworker/internal/match"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status and progress of an evaluation job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := uuid.Parse(args[0])
		if err != nil {
			return &evaluation.ValidationError{Field: "job id", Input: args[0], Reason: "not a uuid"}
		}

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		job, err := store.GetJob(cmd.Context(), jobID)
		if errors.Is(err, models.ErrNotFound) {
			return evaluation.ErrJobNotFound
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), job)
	},
}

type skillView struct {
	Skill     string  `json:"skill"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning,omitempty"`
}

type unitView struct {
	Unit   string                `json:"unit"`
	Source string                `json:"source"`
	Skills []models.DerivedSkill `json:"skills"`
}

var skillsCmd = &cobra.Command{
	Use:   "skills <handle>",
	Short: "Show the aggregated skills stored for a handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := evaluation.ParseHandle(args[0])
		if err != nil {
			return err
		}
		withUnits, _ := cmd.Flags().GetBool("units")

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		subject, err := store.SubjectByHandle(cmd.Context(), handle)
		if errors.Is(err, models.ErrNotFound) {
			return evaluation.ErrSubjectNotFound
		}
		if err != nil {
			return err
		}
		skills, err := store.SubjectSkills(cmd.Context(), subject.ID)
		if err != nil {
			return err
		}

		out := struct {
			Subject models.Subject `json:"subject"`
			Skills  []skillView    `json:"skills"`
			Units   []unitView     `json:"units,omitempty"`
		}{Subject: subject, Skills: make([]skillView, 0, len(skills))}
		for _, s := range skills {
			out.Skills = append(out.Skills, skillView{Skill: s.Skill, Score: s.Score, Reasoning: s.Reasoning})
		}

		if withUnits {
			units, err := store.SubjectUnits(cmd.Context(), subject.ID)
			if err != nil {
				return err
			}
			for _, u := range units {
				out.Units = append(out.Units, unitView{Unit: u.Unit.FullName, Source: u.Unit.Source, Skills: u.Skills})
			}
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <handle>",
	Short: "Rank catalog postings against a handle's skills",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := evaluation.ParseHandle(args[0])
		if err != nil {
			return err
		}

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()

		service := match.NewService(store, textvec.NewVocabularyCache(store), cfg.MatchOptions(), log.Named("match"))
		results, err := service.Match(cmd.Context(), handle)
		if err != nil {
			return err
		}
		log.Debug("match ranked", zap.String("handle", handle), zap.Int("results", len(results)))
		return printJSON(cmd.OutOrStdout(), results)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, skillsCmd, matchCmd)

	skillsCmd.Flags().Bool("units", false, "include per-unit derived skills")

	matchCmd.Flags().IntP("limit", "l", 0, "number of postings to return (default from match.limit)")
	viper.BindPFlag("match.limit", matchCmd.Flags().Lookup("limit"))
}
