package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/efinauri/shadowbuilder/internal/config"
	"github.com/efinauri/shadowbuilder/internal/evo"
	"github.com/efinauri/shadowbuilder/internal/logging"
	"github.com/efinauri/shadowbuilder/internal/model"
	"github.com/efinauri/shadowbuilder/internal/render"
	"github.com/efinauri/shadowbuilder/internal/storage"
	sbapi "github.com/efinauri/shadowbuilder/pkg/shadowbuilder"
)

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	env, err := config.Load("")
	if err != nil {
		return err
	}

	switch args[0] {
	case "run":
		return runRun(ctx, env, args[1:])
	case "runs":
		return runRuns(ctx, env, args[1:])
	case "fitness":
		return runFitness(ctx, env, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, env, args[1:])
	case "deck":
		return runDeck(ctx, env, args[1:])
	case "tags":
		return runTags(ctx, env, args[1:])
	case "export":
		return runExport(ctx, env, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind    *string
	dbPath  *string
	runsDir *string
}

func addStoreFlags(fs *flag.FlagSet, env config.Config) storeFlags {
	kind := env.StoreKind
	if kind == "" {
		kind = storage.DefaultStoreKind()
	}
	return storeFlags{
		kind:    fs.String("store", kind, "store backend: memory|sqlite"),
		dbPath:  fs.String("db-path", env.DBPath, "sqlite database path"),
		runsDir: fs.String("runs-dir", env.RunsDir, "run artifacts directory"),
	}
}

func (s storeFlags) client(env config.Config, logger *logrus.Logger) (*sbapi.Client, error) {
	return sbapi.New(sbapi.Options{
		StoreKind:  *s.kind,
		DBPath:     *s.dbPath,
		RunsDir:    *s.runsDir,
		ExportsDir: env.ExportsDir,
		Logger:     logger,
	})
}

type refFlags struct {
	runID  *string
	latest *bool
}

func addRefFlags(fs *flag.FlagSet, what string) refFlags {
	return refFlags{
		runID:  fs.String("run-id", "", "run id"),
		latest: fs.Bool("latest", false, "use the most recent run from the run index for "+what),
	}
}

func (r refFlags) ref(command string) (sbapi.RunRef, error) {
	if *r.runID != "" && *r.latest {
		return sbapi.RunRef{}, errors.New("use either --run-id or --latest, not both")
	}
	if *r.runID == "" && !*r.latest {
		return sbapi.RunRef{}, fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return sbapi.RunRef{RunID: *r.runID, Latest: *r.latest}, nil
}

func runRun(ctx context.Context, env config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	resumeFrom := fs.String("resume-from", "", "seed the population from a persisted run")
	catalogPath := fs.String("catalog", env.CatalogPath, "card catalog JSON path")
	craft := fs.String("craft", "Forestcraft", "craft to build for")
	format := fs.String("format", "unlimited", "format: rotation|unlimited")
	tags := fs.String("tags", "", "comma separated tags to favor")
	targetSize := fs.Int("target-size", 40, "deck size")
	maxCopies := fs.Int("max-copies", 3, "copies allowed per card")
	curve := fs.String("curve", "", "comma separated ideal curve (defaults to 4,14,6,5,4,3,2,2)")
	wCurve := fs.Float64("w-curve", 0.4, "weight of the curve score")
	wTags := fs.Float64("w-tags", 0.4, "weight of the tag score")
	wConsistency := fs.Float64("w-consistency", 0.2, "weight of the consistency score")
	consistencyOffset := fs.Int("consistency-offset", 0, "distinct cards above the minimum where consistency reaches 0 (0 derives it)")
	population := fs.Int("pop", 2048, "population size")
	generations := fs.Int("gens", 0, "generation limit (0 runs until convergence or collapse)")
	targetFitness := fs.Float64("target-fitness", 0.95, "stop once the best deck reaches this fitness")
	seed := fs.Int64("seed", 0, "rng seed (0 picks one from the clock)")
	selection := fs.String("selection", "stochastic_acceptance", "parent selection: "+strings.Join(evo.SelectorNames(), "|"))
	tempStart := fs.Int("temp-start", 0, "initial mutation radius (0 uses the pool size)")
	tempMin := fs.Int("temp-min", 0, "minimum mutation radius (0 uses the rounded square root of the pool size)")
	tempAnnealing := fs.Float64("temp-annealing", 1, "mutation radius decrease per generation")
	cullBase := fs.Float64("cull-base", 0, "cull threshold at generation 0")
	cullAnnealing := fs.Float64("cull-annealing", 0.005, "cull threshold increase per generation")
	cullCap := fs.Float64("cull-cap", 0.5, "cull threshold ceiling")
	quiet := fs.Bool("quiet", false, "suppress per-generation output")
	logLevel := fs.String("log-level", env.LogLevel, "log level")
	logFormat := fs.String("log-format", env.LogFormat, "log format: text|json")
	store := addStoreFlags(fs, env)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})
	use := func(name string) bool {
		return *configPath == "" || setFlags[name]
	}

	req := sbapi.RunRequest{}
	if *configPath != "" {
		loaded, err := loadRunRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
		req = loaded
		if req.CatalogPath == "" {
			req.CatalogPath = *catalogPath
		}
	}
	if use("run-id") {
		req.RunID = *runID
	}
	if use("resume-from") {
		req.ResumeFrom = *resumeFrom
	}
	if use("catalog") {
		req.CatalogPath = *catalogPath
	}
	if use("craft") {
		req.Craft = *craft
	}
	if use("format") {
		req.Format = *format
	}
	if use("tags") {
		req.Tags = splitList(*tags)
	}
	if use("target-size") {
		req.TargetSize = *targetSize
	}
	if use("max-copies") {
		req.MaxCopies = *maxCopies
	}
	if use("curve") {
		parsed, err := parseCurve(*curve)
		if err != nil {
			return err
		}
		req.IdealCurve = parsed
	}
	if use("w-curve") {
		req.Weights.Curve = *wCurve
	}
	if use("w-tags") {
		req.Weights.Tags = *wTags
	}
	if use("w-consistency") {
		req.Weights.Consistency = *wConsistency
	}
	if use("consistency-offset") {
		req.ConsistencyOffset = *consistencyOffset
	}
	if use("pop") {
		req.Population = *population
	}
	if use("gens") {
		req.MaxGenerations = *generations
	}
	if use("target-fitness") {
		req.TargetFitness = *targetFitness
	}
	if use("seed") {
		req.Seed = *seed
	}
	if use("selection") {
		req.Selection = *selection
	}
	if use("temp-start") {
		req.TemperatureStart = *tempStart
	}
	if use("temp-min") {
		req.TemperatureMin = *tempMin
	}
	if use("temp-annealing") {
		req.TemperatureAnnealing = *tempAnnealing
	}
	if use("cull-base") {
		req.CullBase = *cullBase
	}
	if use("cull-annealing") {
		req.CullAnnealing = *cullAnnealing
	}
	if use("cull-cap") {
		req.CullCap = *cullCap
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if !*quiet {
		req.Observer = func(d model.GenerationDiagnostics) {
			fmt.Fprintln(stdout, render.GenerationLine(d))
		}
	}

	logger, err := logging.New(*logLevel, *logFormat, os.Stderr)
	if err != nil {
		return err
	}
	client, err := store.client(env, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if summary.RunID == "" {
		return err
	}

	fmt.Fprintf(stdout, "run_id=%s state=%s generations=%s seed=%d\n",
		summary.RunID, summary.State, humanize.Comma(int64(summary.Generations)), req.Seed)
	printDeck(summary.BestDeck, summary.Curve, summary.PortalLink)
	if summary.ArtifactsDir != "" {
		fmt.Fprintf(stdout, "artifacts=%s\n", summary.ArtifactsDir)
	}
	return err
}

func runRuns(ctx context.Context, env config.Config, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	store := addStoreFlags(fs, env)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := store.client(env, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, sbapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s created_at=%s craft=%s format=%s seed=%d pop=%d gens=%d state=%s final_best_fitness=%.6f\n",
			r.RunID,
			r.CreatedAtUTC,
			r.Craft,
			r.Format,
			r.Seed,
			r.Population,
			r.Generations,
			r.State,
			r.FinalBestFitness,
		)
	}
	return nil
}

func runFitness(ctx context.Context, env config.Config, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	refs := addRefFlags(fs, "fitness history")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	store := addStoreFlags(fs, env)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := refs.ref("fitness")
	if err != nil {
		return err
	}

	client, err := store.client(env, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, sbapi.FitnessHistoryRequest{RunRef: ref, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Fprintln(stdout, "no fitness history")
		return nil
	}
	if *jsonOut {
		return writeJSON(history)
	}
	for i, best := range history {
		fmt.Fprintf(stdout, "generation=%d best_fitness=%.6f\n", i+1, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, env config.Config, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	refs := addRefFlags(fs, "diagnostics")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	store := addStoreFlags(fs, env)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := refs.ref("diagnostics")
	if err != nil {
		return err
	}

	client, err := store.client(env, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, sbapi.DiagnosticsRequest{RunRef: ref, Limit: max(*limit, 0)})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Fprintln(stdout, "no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Fprintf(stdout, "%s fallbacks=%d state=%s\n", render.GenerationLine(d), d.MutationFallbacks, d.State)
	}
	return nil
}

func runDeck(ctx context.Context, env config.Config, args []string) error {
	fs := flag.NewFlagSet("deck", flag.ContinueOnError)
	refs := addRefFlags(fs, "the best deck")
	jsonOut := fs.Bool("json", false, "emit the deck record as JSON")
	store := addStoreFlags(fs, env)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := refs.ref("deck")
	if err != nil {
		return err
	}

	client, err := store.client(env, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	view, err := client.BestDeck(ctx, ref)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(view.Record)
	}
	printDeck(view.Record, view.Curve, view.PortalLink)
	return nil
}

func runTags(ctx context.Context, env config.Config, args []string) error {
	fs := flag.NewFlagSet("tags", flag.ContinueOnError)
	catalogPath := fs.String("catalog", env.CatalogPath, "card catalog JSON path")
	craft := fs.String("craft", "Forestcraft", "craft")
	format := fs.String("format", "unlimited", "format: rotation|unlimited")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Listing tags never touches the store.
	client, err := sbapi.New(sbapi.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	tags, err := client.Tags(ctx, sbapi.TagsRequest{CatalogPath: *catalogPath, Craft: *craft, Format: *format})
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Fprintln(stdout, "no tags available")
		return nil
	}
	fmt.Fprintln(stdout, strings.Join(tags, "\n"))
	return nil
}

func runExport(ctx context.Context, env config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	refs := addRefFlags(fs, "export")
	outDir := fs.String("out", env.ExportsDir, "export output directory")
	store := addStoreFlags(fs, env)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref, err := refs.ref("export")
	if err != nil {
		return err
	}

	client, err := store.client(env, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, sbapi.ExportRequest{RunRef: ref, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func printDeck(record model.DeckRecord, curve []int, link string) {
	if len(record.Cards) == 0 {
		fmt.Fprintln(stdout, "no deck recorded")
		return
	}
	fmt.Fprintln(stdout, render.DeckSummary(record))
	fmt.Fprint(stdout, render.DeckList(record))
	fmt.Fprint(stdout, render.Histogram(curve, "#", 1))
	if link != "" {
		fmt.Fprintln(stdout, link)
	}
}

func writeJSON(value any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseCurve(value string) ([]float64, error) {
	parts := splitList(value)
	if len(parts) == 0 {
		return nil, nil
	}
	curve := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse curve bucket %q: %w", part, err)
		}
		curve = append(curve, v)
	}
	return curve, nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: shadowbuilderctl <run|runs|fitness|diagnostics|deck|tags|export> [flags]", msg)
}
