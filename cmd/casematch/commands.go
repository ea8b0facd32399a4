package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/services/matcher"
	"case-disposition-engine/internal/utils"
)

var inputFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "batches",
		Required: true,
		Usage:    "specify the input batches.json (array of case packages)",
	},
	&cli.StringFlag{
		Name:     "orgs",
		Required: true,
		Usage:    "specify the input orgs.json (array of organizations)",
	},
	&cli.StringFlag{
		Name:  "out",
		Usage: "specify the output file (default stdout)",
	},
	&cli.Float64SliceFlag{
		Name:  "weights",
		Usage: "region,performance,capacity,specialty,cost weights (default 30,25,20,15,10)",
	},
	&cli.BoolFlag{
		Name:  "strict",
		Usage: "reject weights that do not sum to 100",
	},
	&cli.IntFlag{
		Name:  "workers",
		Value: 1,
		Usage: "number of batches scored in parallel",
	},
}

var rankCmd = &cli.Command{
	Name:    "rank",
	Usage:   "Rank organizations for every case package",
	Aliases: []string{"r"},
	Flags:   inputFlags,
	Action: func(ctx *cli.Context) error {
		svc, err := serviceFromFlags(ctx)
		if err != nil {
			return err
		}
		return withOutput(ctx.String("out"), func(w io.Writer) error {
			return doRank(ctx.Context, svc, ctx.String("batches"), ctx.String("orgs"), w)
		})
	},
}

var planCmd = &cli.Command{
	Name:    "plan",
	Usage:   "Build an assignment plan for the case packages",
	Aliases: []string{"p"},
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "min-score",
			Value: models.DefaultConstraints().MinMatchScore,
			Usage: "minimum match score for an assignment (0-100)",
		},
		&cli.IntFlag{
			Name:  "max-cases",
			Value: models.DefaultConstraints().MaxCasesPerOrg,
			Usage: "maximum cases per organization, 0 for no cap",
		},
		&cli.Float64Flag{
			Name:  "max-load",
			Value: models.DefaultConstraints().MaxLoadRate,
			Usage: "maximum projected load rate (0-100)",
		},
	}, inputFlags...),
	Action: func(ctx *cli.Context) error {
		svc, err := serviceFromFlags(ctx)
		if err != nil {
			return err
		}
		constraints := models.ConstraintSet{
			MinMatchScore:  ctx.Int("min-score"),
			MaxCasesPerOrg: ctx.Int("max-cases"),
			MaxLoadRate:    ctx.Float64("max-load"),
		}
		svc = svc.WithOverrides(nil, &constraints)
		return withOutput(ctx.String("out"), func(w io.Writer) error {
			return doPlan(ctx.Context, svc, ctx.String("batches"), ctx.String("orgs"), w)
		})
	},
}

var importCmd = &cli.Command{
	Name:  "import",
	Usage: "Convert a case CSV into batches.json",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "csv",
			Required: true,
			Usage:    "specify the input case CSV",
		},
		&cli.StringFlag{
			Name:  "package",
			Value: "pkg-default",
			Usage: "package id for rows without one",
		},
		&cli.StringFlag{
			Name:  "out",
			Usage: "specify the output file (default stdout)",
		},
	},
	Action: func(ctx *cli.Context) error {
		return withOutput(ctx.String("out"), func(w io.Writer) error {
			return doImport(ctx.String("csv"), ctx.String("package"), w, ctx.App.ErrWriter)
		})
	},
}

func serviceFromFlags(ctx *cli.Context) (*matcher.MatcherService, error) {
	weights := models.DefaultWeights()
	if values := ctx.Float64Slice("weights"); len(values) > 0 {
		if len(values) != 5 {
			return nil, errors.New("invalid weights: expected 5 values")
		}
		weights = models.WeightVector{
			Region:      values[0],
			Performance: values[1],
			Capacity:    values[2],
			Specialty:   values[3],
			Cost:        values[4],
		}
	}

	return matcher.New(weights, models.DefaultConstraints(),
		matcher.WithStrictWeights(ctx.Bool("strict")),
		matcher.WithScoringWorkers(ctx.Int("workers")),
	), nil
}

func doRank(ctx context.Context, svc *matcher.MatcherService, batchesFile, orgsFile string, w io.Writer) error {
	batches, orgs, err := loadInputs(batchesFile, orgsFile)
	if err != nil {
		return err
	}
	if err := models.ValidateCaseBatches(batches); err != nil {
		return err
	}

	outcomes := make([]*matcher.MatchOutcome, 0, len(batches))
	for _, b := range batches {
		outcome, err := svc.Match(ctx, b, orgs)
		if err != nil {
			return fmt.Errorf("batch %s: %w", b.ID, err)
		}
		outcomes = append(outcomes, outcome)
	}

	return writeJSON(w, outcomes)
}

func doPlan(ctx context.Context, svc *matcher.MatcherService, batchesFile, orgsFile string, w io.Writer) error {
	batches, orgs, err := loadInputs(batchesFile, orgsFile)
	if err != nil {
		return err
	}

	result, err := svc.PlanAssignments(ctx, batches, orgs)
	if err != nil {
		return err
	}

	return writeJSON(w, struct {
		Plan    *models.AssignmentPlan `json:"plan"`
		Summary models.PlanSummary     `json:"summary"`
	}{result.Plan, result.Plan.Summary(result.ProcessingTime)})
}

func doImport(csvFile, defaultPackageID string, w, errW io.Writer) error {
	content, err := os.ReadFile(csvFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", csvFile, err)
	}

	cases, parseErrors := utils.NewCSVParser().ParseCases(string(content), defaultPackageID)
	for _, e := range parseErrors {
		fmt.Fprintln(errW, "skipped:", e)
	}
	if len(cases) == 0 {
		return errors.New("no valid cases in CSV")
	}

	return writeJSON(w, utils.GroupIntoBatches(cases))
}

func loadInputs(batchesFile, orgsFile string) ([]*models.CaseBatch, []*models.Organization, error) {
	var batches []*models.CaseBatch
	if err := readJSON(batchesFile, &batches); err != nil {
		return nil, nil, err
	}
	for _, b := range batches {
		if b != nil && len(b.Cases) > 0 {
			b.Recompute()
		}
	}

	var orgs []*models.Organization
	if err := readJSON(orgsFile, &orgs); err != nil {
		return nil, nil, err
	}

	return batches, orgs, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func withOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
