package task

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stellarlinkco/checkrank/internal/backend"
	"github.com/stellarlinkco/checkrank/internal/checklist"
	"github.com/stellarlinkco/checkrank/internal/dataset"
	"github.com/stellarlinkco/checkrank/internal/judge"
	"github.com/stellarlinkco/checkrank/internal/ranking"
	"github.com/stellarlinkco/checkrank/internal/score"
	"github.com/stellarlinkco/checkrank/internal/store"
)

// Orchestrator runs the pipeline stages strictly in order, skipping any
// stage whose artifacts already exist for the task id. Each backend is
// bound to its model at construction time; the remote/local regimes are
// never mixed within one run.
type Orchestrator struct {
	Registry *dataset.Registry
	Store    store.Store

	Generator backend.Backend
	Judge     backend.Backend
	Labeler   backend.Backend

	ParseRetries int
	Logf         func(format string, args ...any)
}

// Run executes (or resumes) a task through Checklist, Judgment, Score, and
// Ranking. A fatal stage error halts in place; the task id stays valid and
// a later Run re-enters at the first incomplete stage.
func (o *Orchestrator) Run(ctx context.Context, t *Task) error {
	if o == nil || o.Registry == nil || o.Store == nil {
		return errors.New("task: orchestrator missing registry/store")
	}
	if ctx == nil {
		return errors.New("task: nil context")
	}
	if err := t.Validate(); err != nil {
		return err
	}

	if err := o.Store.SaveTask(ctx, &store.TaskRecord{
		ID:      t.ID,
		Dataset: t.Dataset,
		Judge:   t.JudgeModel,
	}); err != nil {
		return fmt.Errorf("task %s: init: %w", t.ID, err)
	}

	prompts, err := o.Registry.Prompts(t.Dataset)
	if err != nil {
		return fmt.Errorf("task %s: init: %w", t.ID, err)
	}
	trainModels, err := o.Registry.TargetModels(t.Dataset, dataset.SplitTrain)
	if err != nil {
		return fmt.Errorf("task %s: init: %w", t.ID, err)
	}
	allModels, err := o.Registry.TargetModels(t.Dataset, dataset.SplitFull)
	if err != nil {
		return fmt.Errorf("task %s: init: %w", t.ID, err)
	}
	testModels, err := o.Registry.TargetModels(t.Dataset, dataset.SplitTest)
	if err != nil {
		return fmt.Errorf("task %s: init: %w", t.ID, err)
	}

	responses := make(map[string]map[string]string, len(allModels))
	for _, model := range allModels {
		resp, err := o.Registry.Responses(t.Dataset, model)
		if err != nil {
			return fmt.Errorf("task %s: init: %w", t.ID, err)
		}
		responses[model] = resp
	}

	checklists, err := o.checklistStage(ctx, t, prompts)
	if err != nil {
		return fmt.Errorf("task %s: checklist stage: %w", t.ID, err)
	}

	if err := o.judgmentStage(ctx, t, prompts, checklists, allModels, trainModels, responses); err != nil {
		return fmt.Errorf("task %s: judgment stage: %w", t.ID, err)
	}

	if err := o.scoreStage(ctx, t, trainModels); err != nil {
		return fmt.Errorf("task %s: score stage: %w", t.ID, err)
	}

	if err := o.rankingStage(ctx, t, testModels); err != nil {
		return fmt.Errorf("task %s: ranking stage: %w", t.ID, err)
	}

	return nil
}

// checklistStage loads or generates the checklist set for the dataset.
// Checklists key on (dataset, generator), not task id, so tasks over the
// same dataset and generator share them. A stored set that covers only some
// prompts is topped up: generation runs for the missing prompts alone and
// the result merges back into the stored set.
func (o *Orchestrator) checklistStage(ctx context.Context, t *Task, prompts []dataset.Prompt) (map[string][]string, error) {
	existing, err := o.Store.GetChecklists(ctx, t.Dataset, t.GeneratorModel)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var missing []dataset.Prompt
	for _, p := range prompts {
		if len(existing[p.ID]) == 0 {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		o.logf("checklist: reusing stored set for %s/%s (%d prompts)", t.Dataset, t.GeneratorModel, len(existing))
		return existing, nil
	}

	if !t.GenerateChecklists {
		if len(existing) > 0 {
			o.logf("checklist: reusing stored set for %s/%s (%d prompts, %d uncovered)",
				t.Dataset, t.GeneratorModel, len(existing), len(missing))
			return existing, nil
		}
		return nil, fmt.Errorf("no stored checklist set for %s/%s and generation disabled", t.Dataset, t.GeneratorModel)
	}
	if o.Generator == nil {
		return nil, errors.New("nil generator backend")
	}

	if len(missing) < len(prompts) {
		o.logf("checklist: generating %d missing prompts for %s/%s", len(missing), t.Dataset, t.GeneratorModel)
	}
	gen := &checklist.Generator{Backend: o.Generator, Retries: o.ParseRetries}
	res, err := gen.Generate(ctx, missing)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing = make(map[string][]string, len(res.Items))
	}
	for promptID, items := range res.Items {
		existing[promptID] = items
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("all %d prompts failed checklist generation", len(res.Failed))
	}
	if len(res.Failed) > 0 {
		o.logf("checklist: %d prompts failed generation: %v", len(res.Failed), res.Failed)
	}

	if err := o.Store.SaveChecklists(ctx, t.Dataset, t.GeneratorModel, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// judgmentStage collects judge verdicts for all models and labeler verdicts
// for the train split. Models already judged under this task id are never
// re-requested; a grown model list computes only the new models.
func (o *Orchestrator) judgmentStage(
	ctx context.Context,
	t *Task,
	prompts []dataset.Prompt,
	checklists map[string][]string,
	allModels, trainModels []string,
	responses map[string]map[string]string,
) error {
	if err := o.collectJudgments(ctx, t, prompts, checklists, allModels, responses, o.Judge, false); err != nil {
		return err
	}
	// Labeler verdicts are ground truth for calibration only; they are
	// collected for the train split alone and stored apart from the judge's.
	return o.collectJudgments(ctx, t, prompts, checklists, trainModels, responses, o.Labeler, true)
}

func (o *Orchestrator) collectJudgments(
	ctx context.Context,
	t *Task,
	prompts []dataset.Prompt,
	checklists map[string][]string,
	models []string,
	responses map[string]map[string]string,
	be backend.Backend,
	labeler bool,
) error {
	done, err := o.Store.JudgedModels(ctx, t.ID, labeler)
	if err != nil {
		return err
	}
	doneSet := make(map[string]struct{}, len(done))
	for _, model := range done {
		doneSet[model] = struct{}{}
	}

	var todo []string
	for _, model := range models {
		if _, ok := doneSet[model]; !ok {
			todo = append(todo, model)
		}
	}
	if len(todo) == 0 {
		o.logf("judgment(labeler=%v): all %d models already judged", labeler, len(models))
		return nil
	}
	if be == nil {
		return errors.New("nil judgment backend")
	}

	o.logf("judgment(labeler=%v): judging %d of %d models", labeler, len(todo), len(models))
	j := &judge.Judger{Backend: be, Retries: o.ParseRetries}
	rows, err := j.Judge(ctx, prompts, checklists, todo, responses)
	if err != nil {
		return err
	}
	return o.Store.SaveJudgments(ctx, t.ID, labeler, rows)
}

// scoreStage fits calibration on train-split rows only and applies the
// frozen model to every judgment row in both splits.
func (o *Orchestrator) scoreStage(ctx context.Context, t *Task, trainModels []string) error {
	if _, err := o.Store.GetScores(ctx, t.ID); err == nil {
		o.logf("score: artifacts already present")
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	judgments, err := o.Store.GetJudgments(ctx, t.ID, false)
	if err != nil {
		return err
	}
	if len(judgments) == 0 {
		return errors.New("no judgment rows")
	}
	labels, err := o.Store.GetJudgments(ctx, t.ID, true)
	if err != nil {
		return err
	}

	trainSet := make(map[string]struct{}, len(trainModels))
	for _, model := range trainModels {
		trainSet[model] = struct{}{}
	}
	var trainJudgments []store.JudgmentRow
	for _, row := range judgments {
		if _, ok := trainSet[row.Model]; ok {
			trainJudgments = append(trainJudgments, row)
		}
	}

	trainRows := score.BuildTrainingRows(trainJudgments, labels, t.LabelThreshold)
	if len(trainRows) == 0 {
		return errors.New("no labeled training rows; cannot fit calibration")
	}

	cal, err := score.New(t.Strategy)
	if err != nil {
		return err
	}
	if err := cal.Fit(trainRows); err != nil {
		return err
	}

	params, err := cal.Params()
	if err != nil {
		return err
	}
	if err := o.Store.SaveCalibration(ctx, t.ID, cal.Strategy(), params); err != nil {
		return err
	}

	scores, err := score.Apply(cal, judgments)
	if err != nil {
		return err
	}
	return o.Store.SaveScores(ctx, t.ID, scores)
}

// rankingStage ranks the test split from stored scores.
func (o *Orchestrator) rankingStage(ctx context.Context, t *Task, testModels []string) error {
	if _, err := o.Store.GetRanking(ctx, t.ID); err == nil {
		o.logf("ranking: artifact already present")
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	scores, err := o.Store.GetScores(ctx, t.ID)
	if err != nil {
		return err
	}

	res, err := ranking.Rank(testModels, score.Aggregate(scores))
	if err != nil {
		return err
	}
	if len(res.Unscored) > 0 {
		o.logf("ranking: models with no score: %v", res.Unscored)
	}
	if len(res.Rows) == 0 {
		return errors.New("no scored models to rank")
	}
	return o.Store.SaveRanking(ctx, t.ID, res.Rows)
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o == nil {
		return
	}
	if o.Logf != nil {
		o.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}
