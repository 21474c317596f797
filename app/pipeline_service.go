package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goregime/adapters/battery"
	"goregime/adapters/stats/attribution"
	"goregime/adapters/stats/evaluator"
	"goregime/adapters/stats/fdr"
	rule "goregime/domain/attribution"
	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/domain/run"
	"goregime/domain/series"
	"goregime/domain/term"
	"goregime/internal/errors"
	"goregime/internal/telemetry"
	"goregime/ports"
)

// PipelineService runs attribution, evaluation and inference for one declared
// metric family.
type PipelineService struct {
	calendarSource ports.CalendarSource
	seriesSource   ports.SeriesSource
	registry       ports.DefinitionRegistry
	store          ports.ResultStore

	attributor  *attribution.Engine
	evaluator   *evaluator.Evaluator
	permutation *battery.PermutationEngine
	bootstrap   *battery.BootstrapEstimator
	corrector   *fdr.Corrector
	logger      *zap.Logger
}

// RunRequest is the configuration of one run.
type RunRequest struct {
	RunID         core.RunID // optional, generated if empty
	Rule          rule.Rule
	Randomization inference.Config
	Tiers         inference.TierPolicy
	NeweyWestLags int
	Workers       int
	CodeVersion   string
}

// Inputs are the fully materialized inputs of a run.
type Inputs struct {
	Calendar term.Calendar
	Family   metric.Family
	Catalog  ports.SeriesCatalog
	Series   map[core.SeriesID]series.Series
}

// RunResult is everything a run produced, in declared family order.
type RunResult struct {
	Manifest *run.Manifest
	Calendar term.Calendar
	Values   []metric.Value
	Records  []inference.Record
	Summary  run.Summary
}

// NewPipelineService wires the engines around the given sources. store may be
// nil, in which case results are only returned.
func NewPipelineService(
	calendarSource ports.CalendarSource,
	seriesSource ports.SeriesSource,
	registry ports.DefinitionRegistry,
	store ports.ResultStore,
	rngPort ports.RNGPort,
	logger *zap.Logger,
) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{
		calendarSource: calendarSource,
		seriesSource:   seriesSource,
		registry:       registry,
		store:          store,
		attributor:     attribution.NewEngine(logger),
		evaluator:      evaluator.NewEvaluator(logger),
		permutation:    battery.NewPermutationEngine(rngPort, logger),
		bootstrap:      battery.NewBootstrapEstimator(rngPort, logger),
		corrector:      fdr.NewCorrector(),
		logger:         logger,
	}
}

// LoadInputs reads the registry, the calendar and every series the family
// references, then validates them together.
func (s *PipelineService) LoadInputs(ctx context.Context) (*Inputs, error) {
	family, catalog, err := s.registry.Load(ctx)
	if err != nil {
		return nil, errors.Fatal("load registry", err)
	}
	cal, err := s.calendarSource.LoadCalendar(ctx)
	if err != nil {
		return nil, errors.Fatal("load calendar", err)
	}

	in := &Inputs{
		Calendar: cal,
		Family:   family,
		Catalog:  catalog,
		Series:   make(map[core.SeriesID]series.Series),
	}
	for _, d := range family.Definitions {
		if _, ok := in.Series[d.Series]; ok {
			continue
		}
		meta, ok := catalog[d.Series]
		if !ok {
			return nil, errors.Fatal("load series", fmt.Errorf("%w: metric %q references %q", core.ErrUnknownSeries, d.ID, d.Series))
		}
		ser, err := s.seriesSource.LoadSeries(ctx, meta)
		if err != nil {
			return nil, errors.Fatal("load series "+meta.ID.String(), err)
		}
		in.Series[meta.ID] = ser
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

// Validate checks every structural invariant of the inputs.
func (in *Inputs) Validate() error {
	if err := in.Calendar.Validate(); err != nil {
		return errors.Fatal("validate calendar", err)
	}
	if err := in.Family.Validate(in.Catalog); err != nil {
		return errors.Fatal("validate family", err)
	}
	for _, d := range in.Family.Definitions {
		ser, ok := in.Series[d.Series]
		if !ok {
			return errors.Fatal("validate series", fmt.Errorf("%w: %q not loaded", core.ErrUnknownSeries, d.Series))
		}
		if err := ser.Validate(); err != nil {
			return errors.Fatal("validate series", err)
		}
	}
	return nil
}

// SeriesList returns the loaded series in family order, each once.
func (in *Inputs) SeriesList() []series.Series {
	seen := make(map[core.SeriesID]bool)
	var out []series.Series
	for _, d := range in.Family.Definitions {
		if seen[d.Series] {
			continue
		}
		seen[d.Series] = true
		out = append(out, in.Series[d.Series])
	}
	return out
}

// Run loads the inputs and executes the pipeline.
func (s *PipelineService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	in, err := s.LoadInputs(ctx)
	if err != nil {
		telemetry.ObserveRun(0, telemetry.OutcomeFatal)
		return nil, err
	}
	return s.Execute(ctx, in, req)
}

// metricOutput is the slot one metric's goroutine writes.
type metricOutput struct {
	values []metric.Value
	record inference.Record
}

// Execute runs the pipeline over materialized inputs. Any structural problem
// aborts before outputs are written; domain errors are counted and kept.
func (s *PipelineService) Execute(ctx context.Context, in *Inputs, req RunRequest) (*RunResult, error) {
	start := time.Now()
	res, err := s.execute(ctx, in, req)
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeFatal
		s.logger.Error("run failed", zap.Error(err), zap.String("code", errors.GetCode(err)))
	}
	telemetry.ObserveRun(time.Since(start), outcome)
	return res, err
}

func (s *PipelineService) execute(ctx context.Context, in *Inputs, req RunRequest) (*RunResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := req.Rule.Validate(); err != nil {
		return nil, errors.Fatal("validate rule", err)
	}
	if err := req.Randomization.Validate(); err != nil {
		return nil, errors.Fatal("validate randomization", err)
	}
	if req.CodeVersion == "" {
		req.CodeVersion = "dev"
	}

	if s.store != nil {
		if err := s.store.CheckDefinitions(ctx, in.Family.Definitions); err != nil {
			if stderrors.Is(err, core.ErrStructural) {
				return nil, errors.Fatal("check definitions", err)
			}
			return nil, errors.StoreError("check definitions", err)
		}
	}

	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}
	manifest := run.NewManifest(runID, in.Calendar, in.SeriesList(), in.Family,
		req.Rule, req.Randomization, req.Tiers, req.CodeVersion)

	s.logger.Info("run started",
		zap.String("run_id", runID.String()),
		zap.Int("metrics", len(in.Family.Definitions)),
		zap.Int("terms", len(in.Calendar.Terms)),
		zap.String("block", req.Randomization.Block.String()),
		zap.String("fingerprint", manifest.Fingerprint.Fingerprint.Short()))

	outputs := make([]metricOutput, len(in.Family.Definitions))
	g, gctx := errgroup.WithContext(ctx)
	workers := req.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, def := range in.Family.Definitions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := s.evaluateMetric(runID, in, def, req)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Fatal("evaluate metrics", err)
	}

	records := make([]inference.Record, len(outputs))
	for i := range outputs {
		records[i] = outputs[i].record
	}
	if err := s.correct(in.Family, records); err != nil {
		return nil, errors.Fatal("correct family", err)
	}
	for i := range records {
		records[i].Evidence = req.Tiers.Classify(records[i].QValue(), records[i].N())
	}

	result := &RunResult{Manifest: manifest, Calendar: in.Calendar, Records: records}
	for _, o := range outputs {
		result.Values = append(result.Values, o.values...)
	}
	result.Summary = summarize(result.Values, len(records))

	if s.store != nil {
		if err := s.persist(ctx, in.Family.Definitions, result); err != nil {
			return nil, err
		}
	}
	telemetry.ObserveValues(result.Values)
	telemetry.ObserveRecords(result.Records)

	s.logger.Info("run finished",
		zap.String("run_id", runID.String()),
		zap.Int("values", result.Summary.Values),
		zap.Int("domain_errors", result.Summary.DomainErrors),
		zap.Int("coverage_warnings", result.Summary.CoverageWarnings),
		zap.Int("no_data", result.Summary.NoData))
	return result, nil
}

// evaluateMetric is the per-metric map step. It only reads shared inputs.
func (s *PipelineService) evaluateMetric(runID core.RunID, in *Inputs, def metric.Definition, req RunRequest) (metricOutput, error) {
	ser := in.Series[def.Series]
	windows, err := s.attributor.Attribute(ser, in.Calendar, req.Rule)
	if err != nil {
		return metricOutput{}, fmt.Errorf("metric %s: %w", def.ID, err)
	}
	values := s.evaluator.Evaluate(runID, def, ser.Meta, req.Rule, windows)

	samples := make([]inference.Sample, len(values))
	for i, v := range values {
		samples[i] = inference.Sample{TermID: v.TermID, Label: v.Label, Start: v.TermStart, Value: v.Value}
	}

	rec := inference.Record{
		FormatVersion:  metric.FormatVersion,
		RunID:          runID,
		MetricID:       def.ID,
		Label:          def.Label,
		Family:         def.Family,
		Role:           string(def.Role),
		DefinitionHash: def.Hash(),
		RuleHash:       req.Rule.Hash(),
		Groups:         battery.Summarize(samples, in.Calendar.LabelA, in.Calendar.LabelB),
		Tier:           req.Tiers,
	}

	perm, err := s.permutation.Test(def.ID, samples, in.Calendar.LabelA, req.Randomization)
	switch {
	case stderrors.Is(err, core.ErrInsufficientGroups):
		rec.Note = "permutation test skipped: a label group has no values"
		s.logger.Warn("untestable metric", zap.String("metric_id", def.ID.String()))
		return metricOutput{values: values, record: rec}, nil
	case err != nil:
		return metricOutput{}, err
	}
	rec.Permutation = perm

	ci, err := s.bootstrap.Interval(def.ID, samples, in.Calendar.LabelA, req.Randomization)
	if err != nil {
		return metricOutput{}, err
	}
	rec.Bootstrap = ci

	hac, err := battery.NeweyWest(samples, in.Calendar.LabelA, req.NeweyWestLags)
	if err != nil {
		s.logger.Debug("HAC diagnostic skipped", zap.String("metric_id", def.ID.String()), zap.Error(err))
	} else {
		rec.HAC = hac
	}

	welch, err := battery.WelchTest(samples, in.Calendar.LabelA)
	if err != nil {
		s.logger.Debug("welch test skipped", zap.String("metric_id", def.ID.String()), zap.Error(err))
	} else {
		rec.Welch = welch
	}
	return metricOutput{values: values, record: rec}, nil
}

// correct runs BH once over the declared family. Family members without a
// permutation result enter with p = 1 so the family stays exact.
func (s *PipelineService) correct(family metric.Family, records []inference.Record) error {
	ids := family.TestedIDs()
	if len(ids) == 0 {
		return nil
	}
	index := make(map[core.MetricID]int, len(records))
	for i, r := range records {
		index[r.MetricID] = i
	}

	pvalues := make(map[core.MetricID]float64, len(ids))
	imputed := make(map[core.MetricID]bool)
	for _, id := range ids {
		i, ok := index[id]
		if !ok {
			return fmt.Errorf("%w: no record for %q", core.ErrFamilyInconsistent, id)
		}
		if p := records[i].Permutation; p != nil {
			pvalues[id] = p.PValue
		} else {
			pvalues[id] = 1
			imputed[id] = true
		}
	}

	qs, err := s.corrector.Correct(ids, pvalues)
	if err != nil {
		return err
	}
	for _, q := range qs {
		q.PImputed = imputed[q.MetricID]
		records[index[q.MetricID]].Q = &q
	}
	return nil
}

// persist writes the run and its unseen definitions in one store call.
func (s *PipelineService) persist(ctx context.Context, defs []metric.Definition, res *RunResult) error {
	err := s.store.SaveResult(ctx, ports.RunBundle{
		Manifest:    res.Manifest,
		Summary:     res.Summary,
		Definitions: defs,
		Values:      res.Values,
		Records:     res.Records,
	})
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, core.ErrStructural):
		return errors.Fatal("save result", err)
	}
	return errors.StoreError("save result", err)
}

func summarize(values []metric.Value, metrics int) run.Summary {
	sum := run.Summary{Values: len(values), Metrics: metrics}
	for _, v := range values {
		switch v.Reason {
		case metric.ReasonDomainError:
			sum.DomainErrors++
		case metric.ReasonOutOfCoverage:
			sum.CoverageWarnings++
		case metric.ReasonNoData:
			sum.NoData++
		}
	}
	return sum
}
