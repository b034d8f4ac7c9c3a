package pagemigration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adintel/adintel/internal/models"
	"github.com/adintel/adintel/internal/settings"
	"github.com/rs/zerolog"
)

// ErrVerificationFailed is returned when at least one check did not pass.
var ErrVerificationFailed = errors.New("migration verification failed")

// SampleJoinLimit bounds the rows fetched by the sample join check.
const SampleJoinLimit = 5

// CheckResult is the outcome of one verification check.
type CheckResult struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Message  string   `json:"message"`
	Details  any      `json:"details,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Report collects every check of one verification run.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Checks    []CheckResult `json:"checks"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return r.Failed == 0 && len(r.Checks) > 0
}

// ExitCode returns the process exit code for the report.
func (r *Report) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Err returns ErrVerificationFailed naming the failed checks, or nil.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	var names []string
	for _, c := range r.Checks {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(names, ", "))
}

type check struct {
	name string
	run  func(ctx context.Context) CheckResult
}

// Verifier runs the post-migration checks.
type Verifier struct {
	store  VerifyStore
	logger zerolog.Logger
}

// NewVerifier creates a new Verifier.
func NewVerifier(store VerifyStore, logger zerolog.Logger) *Verifier {
	return &Verifier{
		store:  store,
		logger: logger.With().Str("component", "verifier").Logger(),
	}
}

// CheckNames lists the checks in the order they run.
func (v *Verifier) CheckNames() []string {
	checks := v.checks()
	names := make([]string, len(checks))
	for i, c := range checks {
		names[i] = c.name
	}
	return names
}

func (v *Verifier) checks() []check {
	return []check{
		{"brand_pages table exists", v.checkTable(tableBrandPages)},
		{"settings table exists", v.checkTable(tableSettings)},
		{"override columns exist", v.checkOverrideColumns},
		{"legacy columns removed", v.checkLegacyColumns},
		{"default settings present", v.checkDefaultSettings},
		{"brands populated", v.checkBrandsPopulated},
		{"brand pages populated", v.checkPagesPopulated},
		{"no orphaned brand pages", v.checkOrphans},
		{"brand_pages indexes present", v.checkIndexes},
		{"unique constraint present", v.checkUniqueConstraint},
		{"updated_at triggers present", v.checkTriggers},
		{"sample join query", v.checkSampleJoin},
		{"data integrity", v.checkIntegrity},
	}
}

// Run executes every check. A failing or erroring check never stops the
// ones after it.
func (v *Verifier) Run(ctx context.Context) *Report {
	report := &Report{StartedAt: time.Now()}

	for _, c := range v.checks() {
		result := c.run(ctx)
		result.Name = c.name
		if result.Passed {
			report.Passed++
			v.logger.Info().Str("check", c.name).Msg(result.Message)
		} else {
			report.Failed++
			v.logger.Error().Str("check", c.name).Msg(result.Message)
		}
		report.Checks = append(report.Checks, result)
	}

	report.Duration = time.Since(report.StartedAt)
	v.logger.Info().
		Int("passed", report.Passed).
		Int("failed", report.Failed).
		Msg("verification finished")
	return report
}

func pass(format string, args ...any) CheckResult {
	return CheckResult{Passed: true, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) CheckResult {
	return CheckResult{Passed: false, Message: fmt.Sprintf(format, args...)}
}

func errored(err error) CheckResult {
	return fail("check errored: %v", err)
}

func (v *Verifier) checkTable(table string) func(ctx context.Context) CheckResult {
	return func(ctx context.Context) CheckResult {
		exists, err := v.store.TableExists(ctx, table)
		if err != nil {
			return errored(err)
		}
		if !exists {
			return fail("%s table is missing", table)
		}
		return pass("%s table exists", table)
	}
}

func (v *Verifier) checkOverrideColumns(ctx context.Context) CheckResult {
	var missing []string
	for _, col := range models.OverrideColumns {
		exists, err := v.store.ColumnExists(ctx, tableBrands, col)
		if err != nil {
			return errored(err)
		}
		if !exists {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		r := fail("brands is missing override columns: %s", strings.Join(missing, ", "))
		r.Details = map[string]any{"missing": missing}
		return r
	}
	return pass("brands has %s", strings.Join(models.OverrideColumns, ", "))
}

func (v *Verifier) checkLegacyColumns(ctx context.Context) CheckResult {
	var remaining []string
	for _, col := range models.LegacyColumns {
		exists, err := v.store.ColumnExists(ctx, tableBrands, col)
		if err != nil {
			return errored(err)
		}
		if exists {
			remaining = append(remaining, col)
		}
	}
	if len(remaining) > 0 {
		r := fail("brands still has legacy columns: %s", strings.Join(remaining, ", "))
		r.Details = map[string]any{"remaining": remaining}
		return r
	}
	return pass("legacy page columns removed from brands")
}

func (v *Verifier) checkDefaultSettings(ctx context.Context) CheckResult {
	rows, err := v.store.ListSettings(ctx)
	if err != nil {
		return errored(err)
	}
	if missing := settings.MissingKeys(rows); len(missing) > 0 {
		keys := make([]string, len(missing))
		for i, k := range missing {
			keys[i] = string(k)
		}
		r := fail("missing settings: %s", strings.Join(keys, ", "))
		r.Details = map[string]any{"missing": keys}
		return r
	}
	parsed, err := settings.ParseScraperSettings(rows)
	if err != nil {
		return fail("settings are not parseable: %v", err)
	}
	r := pass("scraper settings present (enabled=%t, max_ads=%d, max_daily_ads=%d)",
		parsed.Enabled, parsed.MaxAdsPerBrand, parsed.MaxDailyAdsPerBrand)
	r.Details = parsed
	if err := parsed.Validate(); err != nil {
		r.Warnings = append(r.Warnings, err.Error())
	}
	return r
}

func (v *Verifier) checkBrandsPopulated(ctx context.Context) CheckResult {
	n, err := v.store.CountRows(ctx, tableBrands)
	if err != nil {
		return errored(err)
	}
	r := pass("%d brands", n)
	r.Details = map[string]any{"count": n}
	return r
}

func (v *Verifier) checkPagesPopulated(ctx context.Context) CheckResult {
	brands, err := v.store.CountRows(ctx, tableBrands)
	if err != nil {
		return errored(err)
	}
	pages, err := v.store.CountRows(ctx, tableBrandPages)
	if err != nil {
		return errored(err)
	}
	details := map[string]any{"brands": brands, "pages": pages}
	if brands > 0 && pages == 0 {
		r := fail("%d brands but no brand pages", brands)
		r.Details = details
		return r
	}
	r := pass("%d brand pages", pages)
	r.Details = details
	return r
}

func (v *Verifier) checkOrphans(ctx context.Context) CheckResult {
	n, err := v.store.CountOrphanBrandPages(ctx)
	if err != nil {
		return errored(err)
	}
	if n > 0 {
		return fail("%d brand pages reference missing brands", n)
	}
	return pass("every brand page references an existing brand")
}

func (v *Verifier) checkIndexes(ctx context.Context) CheckResult {
	var missing []string
	for _, idx := range BrandPageIndexes {
		exists, err := v.store.IndexExists(ctx, idx)
		if err != nil {
			return errored(err)
		}
		if !exists {
			missing = append(missing, idx)
		}
	}
	if len(missing) > 0 {
		r := fail("missing indexes: %s", strings.Join(missing, ", "))
		r.Details = map[string]any{"missing": missing}
		return r
	}
	return pass("%d brand_pages indexes present", len(BrandPageIndexes))
}

func (v *Verifier) checkUniqueConstraint(ctx context.Context) CheckResult {
	exists, err := v.store.ConstraintExists(ctx, tableBrandPages, constraintBrandPageURL)
	if err != nil {
		return errored(err)
	}
	if !exists {
		return fail("constraint %s is missing", constraintBrandPageURL)
	}
	return pass("constraint %s present", constraintBrandPageURL)
}

func (v *Verifier) checkTriggers(ctx context.Context) CheckResult {
	var missing []string
	for _, t := range []struct{ table, trigger string }{
		{tableBrandPages, triggerBrandPages},
		{tableSettings, triggerSettings},
	} {
		exists, err := v.store.TriggerExists(ctx, t.table, t.trigger)
		if err != nil {
			return errored(err)
		}
		if !exists {
			missing = append(missing, t.trigger)
		}
	}
	if len(missing) > 0 {
		r := fail("missing triggers: %s", strings.Join(missing, ", "))
		r.Details = map[string]any{"missing": missing}
		return r
	}
	return pass("%s and %s present", triggerBrandPages, triggerSettings)
}

// SampleBrand is a row of the sample join together with the scraping limits
// that apply to the brand.
type SampleBrand struct {
	*models.BrandPageSummary
	Limits settings.Limits `json:"limits"`
}

// SampleBrands joins up to SampleJoinLimit brands with their page stats and
// resolves each brand's effective limits. When the settings cannot be read
// the defaults are used and the reason is returned as a warning.
func (v *Verifier) SampleBrands(ctx context.Context) ([]SampleBrand, []string, error) {
	summaries, err := v.store.ListBrandPageSummaries(ctx, SampleJoinLimit)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	global := settings.DefaultScraperSettings()
	rows, err := v.store.ListSettings(ctx)
	if err == nil {
		global, err = settings.ParseScraperSettings(rows)
	}
	if err != nil {
		global = settings.DefaultScraperSettings()
		warnings = append(warnings, fmt.Sprintf("limits use default settings: %v", err))
	}

	samples := make([]SampleBrand, 0, len(summaries))
	for _, sum := range summaries {
		samples = append(samples, SampleBrand{
			BrandPageSummary: sum,
			Limits:           settings.EffectiveLimits(sum.Brand(), global),
		})
	}
	return samples, warnings, nil
}

func (v *Verifier) checkSampleJoin(ctx context.Context) CheckResult {
	samples, warnings, err := v.SampleBrands(ctx)
	if err != nil {
		return errored(err)
	}
	r := pass("join returned %d brands", len(samples))
	r.Details = samples
	r.Warnings = warnings
	return r
}

func (v *Verifier) checkIntegrity(ctx context.Context) CheckResult {
	dups, err := v.store.ListDuplicateBrandPages(ctx)
	if err != nil {
		return errored(err)
	}
	without, err := v.store.ListBrandsWithoutPages(ctx)
	if err != nil {
		return errored(err)
	}

	var r CheckResult
	if len(dups) > 0 {
		r = fail("%d duplicate (brand_id, page_url) pairs", len(dups))
	} else {
		r = pass("no duplicate brand pages")
	}
	for _, b := range without {
		r.Warnings = append(r.Warnings, fmt.Sprintf("brand %q (id %d) has no pages", b.BrandName, b.ID))
	}
	r.Details = map[string]any{
		"duplicates":          dups,
		"brands_without_page": len(without),
	}
	return r
}
