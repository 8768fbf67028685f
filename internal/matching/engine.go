// Package matching runs the lead-to-professional pipeline: geocode the lead,
// query candidates by geohash range, filter by exact distance against each
// professional's declared radius, rank, cap, and persist.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/buildquote/leadmatch/internal/geo"
	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/internal/registry"
	"github.com/buildquote/leadmatch/internal/resilience"
	"github.com/buildquote/leadmatch/internal/scorer"
	"github.com/buildquote/leadmatch/internal/store"
	"github.com/buildquote/leadmatch/pkg/geocode"
)

// Config carries the matching knobs. Zero values fall back to defaults.
type Config struct {
	// SearchRadiusMiles is the candidate-query radius around the lead.
	// Candidates beyond it can never qualify regardless of their own
	// declared radius. Default: 100.
	SearchRadiusMiles float64

	// PerRoleCap limits how many vendors and how many trades appear in a
	// result. Default: 10.
	PerRoleCap int

	// DistanceWeight and RatingWeight tune the ranking score.
	DistanceWeight float64
	RatingWeight   float64

	// QueryTimeout bounds each registry call. Default: 5s.
	QueryTimeout time.Duration

	// QueryConcurrency limits parallel registry queries. Default: 4.
	QueryConcurrency int

	// StoreRetry controls persist retries before parking in the DLQ.
	StoreRetry resilience.RetryConfig

	// Breaker controls the registry and store circuit breakers. ShouldTrip
	// and OnStateChange are set by the engine.
	Breaker resilience.CircuitBreakerConfig

	// DLQMaxRetries caps replay attempts for a parked persist. Default: 5.
	DLQMaxRetries int
}

// DefaultConfig returns the production matching defaults.
func DefaultConfig() Config {
	return Config{
		SearchRadiusMiles: 100,
		PerRoleCap:        10,
		DistanceWeight:    DefaultDistanceWeight,
		RatingWeight:      DefaultRatingWeight,
		QueryTimeout:      5 * time.Second,
		QueryConcurrency:  4,
		StoreRetry:        resilience.DefaultRetryConfig(),
		Breaker:           resilience.DefaultCircuitBreakerConfig(),
		DLQMaxRetries:     5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SearchRadiusMiles <= 0 {
		c.SearchRadiusMiles = d.SearchRadiusMiles
	}
	if c.PerRoleCap <= 0 {
		c.PerRoleCap = d.PerRoleCap
	}
	if c.DistanceWeight <= 0 {
		c.DistanceWeight = d.DistanceWeight
	}
	if c.RatingWeight <= 0 {
		c.RatingWeight = d.RatingWeight
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	if c.QueryConcurrency <= 0 {
		c.QueryConcurrency = d.QueryConcurrency
	}
	if c.DLQMaxRetries <= 0 {
		c.DLQMaxRetries = d.DLQMaxRetries
	}
	return c
}

// Engine wires the matching pipeline together. The registry is consulted
// through a circuit breaker; when it fails, times out, or the circuit is
// open, the same query runs against the fallback registry so a lead always
// gets an answer.
type Engine struct {
	registry registry.Reader
	fallback registry.Reader
	leads    store.LeadStore
	resolver geocode.Resolver
	breakers *resilience.ServiceBreakers
	dlq      *resilience.DLQ
	cfg      Config
}

// NewEngine creates a matching engine. fallback may be nil, in which case
// registry failures produce an empty candidate set instead of fixture data.
func NewEngine(reg registry.Reader, fallback registry.Reader, leads store.LeadStore, resolver geocode.Resolver, cfg Config) *Engine {
	cfg = cfg.withDefaults()

	breakerCfg := cfg.Breaker
	breakerCfg.ShouldTrip = resilience.IsTransient
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("circuit state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Engine{
		registry: reg,
		fallback: fallback,
		leads:    leads,
		resolver: resolver,
		breakers: resilience.NewServiceBreakers(breakerCfg),
		dlq:      resilience.NewDLQ(),
		cfg:      cfg,
	}
}

// DLQ exposes the dead letter queue of failed persists for replay.
func (e *Engine) DLQ() *resilience.DLQ {
	return e.dlq
}

// BreakerStates returns a snapshot of the backend circuit breakers.
func (e *Engine) BreakerStates() map[string]resilience.CircuitState {
	return e.breakers.States()
}

// Match runs the full pipeline for one lead. It mutates the lead in place
// (id, intent score, status, created-at) and always returns a non-nil
// outcome on success. The error return is reserved for invalid input;
// infrastructure failures degrade the outcome instead.
func (e *Engine) Match(ctx context.Context, lead *model.LeadRequest) (*model.MatchOutcome, error) {
	if err := validateLead(lead); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.ZIP = geocode.NormalizeZIP(lead.ZIP)
	lead.Status = model.LeadStatusNew
	lead.IntentScore = scorer.Score(lead)

	outcome := &model.MatchOutcome{
		Result: &model.MatchResult{
			LeadID:      lead.ID,
			Status:      model.MatchStatusNoMatch,
			CreatedAt:   now,
			LastUpdated: now,
		},
	}

	center, ok := e.resolveLead(ctx, lead, outcome)
	if ok {
		e.findMatches(ctx, lead, center, outcome)
	}

	result := outcome.Result
	result.TotalMatches = len(result.Vendors) + len(result.Trades)
	result.Status = model.StatusForCount(result.TotalMatches)
	result.AverageDistanceMiles = averageDistance(result)

	if result.TotalMatches > 0 {
		lead.Status = model.LeadStatusMatched
	} else {
		lead.Status = model.LeadStatusUnmatched
	}

	e.persist(ctx, lead, outcome)

	zap.L().Info("matched lead",
		zap.String("lead_id", lead.ID),
		zap.String("zip", lead.ZIP),
		zap.Int("vendors", len(result.Vendors)),
		zap.Int("trades", len(result.Trades)),
		zap.String("status", string(result.Status)),
		zap.Int("intent_score", lead.IntentScore),
		zap.Bool("degraded", outcome.Degraded()),
	)
	return outcome, nil
}

// validateLead guards against caller bugs only. Missing ZIPs and empty
// category lists are valid leads that end in a no_match outcome.
func validateLead(lead *model.LeadRequest) error {
	if lead == nil {
		return eris.New("matching: nil lead")
	}
	return nil
}

// resolveLead geocodes the lead's ZIP. A miss is a normal outcome: the lead
// ends unmatched with a zip_unresolved degradation, never an error.
func (e *Engine) resolveLead(ctx context.Context, lead *model.LeadRequest, outcome *model.MatchOutcome) (model.GeoPoint, bool) {
	res, err := e.resolver.Resolve(ctx, lead.ZIP)
	if err != nil {
		outcome.Degradations = append(outcome.Degradations, model.Degradation{
			Component: "geocoder",
			Reason:    model.DegradeZIPUnresolved,
			Detail:    err.Error(),
		})
		return model.GeoPoint{}, false
	}
	if !res.Matched {
		outcome.Degradations = append(outcome.Degradations, model.Degradation{
			Component: "geocoder",
			Reason:    model.DegradeZIPUnresolved,
			Detail:    fmt.Sprintf("zip %q not in coverage", lead.ZIP),
		})
		zap.L().Debug("lead zip unresolved", zap.String("lead_id", lead.ID), zap.String("zip", lead.ZIP))
		return model.GeoPoint{}, false
	}
	return model.GeoPoint{Latitude: res.Latitude, Longitude: res.Longitude}, true
}

// findMatches queries candidates for every role and category concurrently,
// then filters, ranks, and caps them into the outcome.
func (e *Engine) findMatches(ctx context.Context, lead *model.LeadRequest, center model.GeoPoint, outcome *model.MatchOutcome) {
	bounds, err := geo.BoundsForRadius(center, e.cfg.SearchRadiusMiles)
	if err != nil {
		// Only reachable with an invalid center or radius, both of which are
		// engine bugs rather than lead problems.
		zap.L().Error("bounds computation failed", zap.Error(err))
		return
	}

	type roleCandidates struct {
		role     model.Role
		profiles []model.Profile
		degraded *model.Degradation
	}

	// Vendors are always matched; trades only when the customer asked for a
	// professional.
	roles := []model.Role{model.RoleVendor}
	if lead.IsLookingForPro {
		roles = append(roles, model.RoleTrade)
	}
	results := make([]roleCandidates, 0, len(roles)*len(lead.Categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.QueryConcurrency)

	resultCh := make(chan roleCandidates, len(roles)*len(lead.Categories))
	for _, role := range roles {
		for _, category := range lead.Categories {
			role, category := role, category
			g.Go(func() error {
				profiles, degraded := e.queryCandidates(gctx, role, bounds, category)
				resultCh <- roleCandidates{role: role, profiles: profiles, degraded: degraded}
				return nil
			})
		}
	}
	// Workers never return errors; Wait only flushes the channel.
	_ = g.Wait()
	close(resultCh)
	for rc := range resultCh {
		results = append(results, rc)
	}

	byRole := map[model.Role]map[string]model.Profile{
		model.RoleVendor: {},
		model.RoleTrade:  {},
	}
	degradedSeen := false
	for _, rc := range results {
		if rc.degraded != nil && !degradedSeen {
			outcome.Degradations = append(outcome.Degradations, *rc.degraded)
			degradedSeen = true
		}
		for _, p := range rc.profiles {
			byRole[rc.role][p.ID] = p
		}
	}

	outcome.Result.Vendors = e.qualify(center, byRole[model.RoleVendor])
	outcome.Result.Trades = e.qualify(center, byRole[model.RoleTrade])
}

// queryCandidates runs one registry query through the breaker. Any failure,
// timeout, or open circuit reroutes the identical query to the fallback
// registry.
func (e *Engine) queryCandidates(ctx context.Context, role model.Role, bounds []geo.Bounds, category string) ([]model.Profile, *model.Degradation) {
	qctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout)
	defer cancel()

	cb := e.breakers.Get("registry")
	profiles, err := resilience.ExecuteVal(qctx, cb, func(ctx context.Context) ([]model.Profile, error) {
		return e.registry.FindCandidates(ctx, role, bounds, category)
	})
	if err == nil {
		return profiles, nil
	}

	degradation := &model.Degradation{
		Component: "registry",
		Reason:    model.DegradeRegistryUnavailable,
		Detail:    err.Error(),
	}
	if eris.Is(err, context.DeadlineExceeded) {
		degradation.Reason = model.DegradeTimeout
	}
	zap.L().Warn("registry query failed, using fallback",
		zap.String("role", string(role)),
		zap.String("category", category),
		zap.Error(err),
	)

	if e.fallback == nil {
		return nil, degradation
	}
	profiles, fbErr := e.fallback.FindCandidates(ctx, role, bounds, category)
	if fbErr != nil {
		zap.L().Error("fallback registry query failed", zap.Error(fbErr))
		return nil, degradation
	}
	return profiles, degradation
}

// qualify applies the exact distance filter and the ranking cap to one
// role's deduplicated candidates. The professional's own service radius is
// the qualifying bound, not the search radius.
func (e *Engine) qualify(center model.GeoPoint, candidates map[string]model.Profile) []model.MatchedProfessional {
	matched := make([]model.MatchedProfessional, 0, len(candidates))
	for _, p := range candidates {
		dist, err := geo.DistanceMiles(center, p.Location)
		if err != nil {
			zap.L().Warn("skipping profile with invalid location",
				zap.String("professional_id", p.ID), zap.Error(err))
			continue
		}
		radius := p.ServiceRadiusMiles
		if radius <= 0 {
			radius = model.DefaultServiceRadiusMiles
		}
		if dist > radius {
			continue
		}
		matched = append(matched, model.MatchedProfessional{Profile: p, DistanceMiles: dist})
	}
	return rankAndCap(matched, e.cfg.DistanceWeight, e.cfg.RatingWeight, e.cfg.PerRoleCap)
}

// persist writes the lead and result best-effort. A final failure parks the
// pair in the DLQ and degrades the outcome; it never fails the match.
func (e *Engine) persist(ctx context.Context, lead *model.LeadRequest, outcome *model.MatchOutcome) {
	if e.leads == nil {
		return
	}

	retryCfg := e.cfg.StoreRetry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger("store", "save_match")
	}

	cb := e.breakers.Get("store")
	err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return cb.Execute(ctx, func(ctx context.Context) error {
			return e.leads.SaveMatch(ctx, lead, outcome.Result)
		})
	})
	if err == nil {
		return
	}

	e.dlq.Add(lead, outcome.Result, err, e.cfg.DLQMaxRetries)
	outcome.Degradations = append(outcome.Degradations, model.Degradation{
		Component: "store",
		Reason:    model.DegradeStoreUnavailable,
		Detail:    err.Error(),
	})
	zap.L().Error("match persist failed, parked in dlq",
		zap.String("lead_id", lead.ID), zap.Error(err))
}

// ReplayDLQ retries parked persists that are due. Returns how many replays
// succeeded.
func (e *Engine) ReplayDLQ(ctx context.Context) int {
	if e.leads == nil {
		return 0
	}
	replayed := 0
	for _, entry := range e.dlq.Pending(time.Now().UTC()) {
		lead := entry.Lead
		if err := e.leads.SaveMatch(ctx, &lead, entry.Result); err != nil {
			e.dlq.Add(&lead, entry.Result, err, e.cfg.DLQMaxRetries)
			continue
		}
		e.dlq.Remove(entry.ID)
		replayed++
	}
	if replayed > 0 {
		zap.L().Info("replayed dlq entries", zap.Int("count", replayed))
	}
	return replayed
}

func averageDistance(result *model.MatchResult) float64 {
	total := 0.0
	count := 0
	for _, m := range result.Vendors {
		total += m.DistanceMiles
		count++
	}
	for _, m := range result.Trades {
		total += m.DistanceMiles
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
