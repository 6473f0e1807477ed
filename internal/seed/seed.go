package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
	"github.com/yungbote/custrisk-backend/internal/services"
)

type bounds struct{ lo, hi float64 }

// riskFactors holds the feature ranges that push a profile toward each risk level.
var riskFactors = map[string]map[types.RiskLevel]bounds{
	"age":                        {types.RiskLow: {35, 65}, types.RiskMedium: {25, 34}, types.RiskHigh: {18, 24}},
	"income":                     {types.RiskLow: {80000, 200000}, types.RiskMedium: {40000, 79999}, types.RiskHigh: {20000, 39999}},
	"credit_score":               {types.RiskLow: {720, 850}, types.RiskMedium: {620, 719}, types.RiskHigh: {300, 619}},
	"account_balance":            {types.RiskLow: {10000, 100000}, types.RiskMedium: {2000, 9999}, types.RiskHigh: {0, 1999}},
	"num_transactions":           {types.RiskLow: {5, 50}, types.RiskMedium: {51, 150}, types.RiskHigh: {151, 300}},
	"transaction_frequency":      {types.RiskLow: {1, 10}, types.RiskMedium: {11, 20}, types.RiskHigh: {21, 30}},
	"average_transaction_amount": {types.RiskLow: {10, 200}, types.RiskMedium: {201, 500}, types.RiskHigh: {501, 1000}},
}

// featureOrder fixes the draw order so a seeded rng yields the same vectors on every run.
var featureOrder = []string{
	"age",
	"income",
	"credit_score",
	"account_balance",
	"num_transactions",
	"transaction_frequency",
	"average_transaction_amount",
}

var integerFeatures = map[string]bool{"age": true, "num_transactions": true, "credit_score": true}

var (
	firstNames = []string{
		"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael", "Linda",
		"William", "Elizabeth", "David", "Susan", "Richard", "Jessica", "Joseph", "Sarah",
		"Thomas", "Karen", "Charles", "Nancy", "Emma", "Noah", "Olivia", "Liam", "Ava",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Jones", "Brown", "Davis", "Miller", "Wilson",
		"Moore", "Taylor", "Anderson", "Thomas", "Jackson", "White", "Harris", "Martin",
		"Thompson", "Garcia", "Martinez", "Robinson", "Clark", "Lewis", "Lee", "Walker",
	}
	emailDomains    = []string{"example.com", "testmail.com", "company.net", "business.org"}
	mitigationTypes = []types.MitigationType{types.MitigationFlag, types.MitigationNote, types.MitigationAction, types.MitigationMonitor}
	descriptions    = []string{
		"Customer shows high-risk transaction patterns. Manual review required.",
		"Multiple large transactions detected. Possible fraud risk.",
		"Irregular account activity detected. Schedule customer verification call.",
		"Low account balance with high transaction frequency. Monitor for overdrafts.",
		"Recent credit score decrease. Schedule financial advisory session.",
	}
	assignees = []string{"Risk Team", "Account Manager", "Fraud Department", "Customer Service", "Financial Advisor"}
)

// Distribution is the Low/Medium/High percentage split of generated profiles.
type Distribution struct {
	Low, Medium, High int
}

var DefaultDistribution = Distribution{Low: 40, Medium: 40, High: 20}

// ParseDistribution reads "low,medium,high" percentages that sum to 100.
func ParseDistribution(raw string) (Distribution, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return Distribution{}, fmt.Errorf("risk distribution %q: want three comma separated percentages", raw)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Distribution{}, fmt.Errorf("risk distribution %q: %q is not a percentage", raw, p)
		}
		v[i] = n
	}
	if v[0]+v[1]+v[2] != 100 {
		return Distribution{}, fmt.Errorf("risk distribution %q: percentages must sum to 100", raw)
	}
	return Distribution{Low: v[0], Medium: v[1], High: v[2]}, nil
}

// Split turns count into per-profile counts. High absorbs rounding.
func (d Distribution) Split(count int) map[types.RiskLevel]int {
	low := int(math.Round(float64(count*d.Low) / 100))
	medium := int(math.Round(float64(count*d.Medium) / 100))
	high := count - low - medium
	if high < 0 {
		medium += high
		high = 0
	}
	return map[types.RiskLevel]int{types.RiskLow: low, types.RiskMedium: medium, types.RiskHigh: high}
}

// Features draws one feature vector for the given profile.
func Features(rng *rand.Rand, profile types.RiskLevel) map[string]float64 {
	out := make(map[string]float64, len(featureOrder))
	for _, name := range featureOrder {
		b := riskFactors[name][profile]
		if integerFeatures[name] {
			out[name] = float64(int(b.lo) + rng.IntN(int(b.hi-b.lo)+1))
			continue
		}
		out[name] = math.Round((b.lo+rng.Float64()*(b.hi-b.lo))*100) / 100
	}
	return out
}

func customerInput(rng *rand.Rand) services.CustomerInput {
	first := firstNames[rng.IntN(len(firstNames))]
	last := lastNames[rng.IntN(len(lastNames))]
	name := first + " " + last
	user := strings.ToLower(first + "." + last)
	if rng.IntN(2) == 0 {
		user = strings.ToLower(first[:1] + last)
	}
	email := user + "@" + emailDomains[rng.IntN(len(emailDomains))]
	phone := fmt.Sprintf("+1-%d-%d-%d", 200+rng.IntN(800), 200+rng.IntN(800), 1000+rng.IntN(9000))
	ext := fmt.Sprintf("CUST-%d", 1000+rng.IntN(9000))
	return services.CustomerInput{Name: &name, Email: &email, Phone: &phone, ExternalID: &ext}
}

type Options struct {
	Count        int
	Distribution Distribution
	Concurrency  int
	// RandSeed makes a run reproducible; zero picks a random seed.
	RandSeed uint64
	Now      func() time.Time
}

type Summary struct {
	Requested map[types.RiskLevel]int
	Created   int
	// Predicted counts every stored prediction, including customers whose
	// mitigation could not be opened afterwards.
	Predicted   map[types.RiskLevel]int
	Mitigations int
	Failed      int
}

type Seeder struct {
	log         *logger.Logger
	customers   services.CustomerService
	workflow    services.RiskWorkflowService
	mitigations services.MitigationTracker
}

func NewSeeder(baseLog *logger.Logger, customers services.CustomerService, workflow services.RiskWorkflowService, mitigations services.MitigationTracker) *Seeder {
	return &Seeder{
		log:         baseLog.With("service", "Seeder"),
		customers:   customers,
		workflow:    workflow,
		mitigations: mitigations,
	}
}

type job struct {
	profile  types.RiskLevel
	customer services.CustomerInput
	features map[string]float64
	mitType  types.MitigationType
	desc     string
	assignee string
	dueDays  int
}

// Run creates opts.Count customers, scores each through the oracle, and opens a
// mitigation for every customer scored High. Per-customer failures are logged and counted.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Count < 0 {
		return nil, fmt.Errorf("%w: count must not be negative", types.ErrInvalidValue)
	}
	if opts.Distribution == (Distribution{}) {
		opts.Distribution = DefaultDistribution
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	seed := opts.RandSeed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	plan := opts.Distribution.Split(opts.Count)
	jobs := make([]job, 0, opts.Count)
	for _, level := range types.RiskLevels {
		for i := 0; i < plan[level]; i++ {
			jobs = append(jobs, job{
				profile:  level,
				customer: customerInput(rng),
				features: Features(rng, level),
				mitType:  mitigationTypes[rng.IntN(len(mitigationTypes))],
				desc:     descriptions[rng.IntN(len(descriptions))],
				assignee: assignees[rng.IntN(len(assignees))],
				dueDays:  1 + rng.IntN(30),
			})
		}
	}
	s.log.Info("seeding customers", "count", opts.Count, "low", plan[types.RiskLow], "medium", plan[types.RiskMedium], "high", plan[types.RiskHigh], "rand_seed", seed)

	sum := &Summary{Requested: plan, Predicted: map[types.RiskLevel]int{}}
	var (
		created, mitigated, failed atomic.Int64
		mu                         sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			level, opened, err := s.runOne(gctx, j, now)
			if level != "" {
				mu.Lock()
				sum.Predicted[level]++
				mu.Unlock()
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				s.log.Warn("seed customer failed", "profile", j.profile, "scored", level, "error", err)
				return nil
			}
			created.Add(1)
			if opened {
				mitigated.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	sum.Created = int(created.Load())
	sum.Mitigations = int(mitigated.Load())
	sum.Failed = int(failed.Load())
	if err != nil {
		return sum, err
	}
	s.log.Info("seeding finished", "created", sum.Created, "mitigations", sum.Mitigations, "failed", sum.Failed)
	return sum, nil
}

func (s *Seeder) runOne(ctx context.Context, j job, now func() time.Time) (types.RiskLevel, bool, error) {
	c, err := s.customers.Create(ctx, j.customer, nil)
	if err != nil {
		return "", false, fmt.Errorf("create customer: %w", err)
	}
	raw := make(map[string]any, len(j.features))
	for k, v := range j.features {
		raw[k] = v
	}
	pred, err := s.workflow.Predict(ctx, c.ID, raw)
	if err != nil {
		return "", false, fmt.Errorf("predict %s: %w", c.ID, err)
	}
	if pred.RiskLevel != types.RiskHigh {
		return pred.RiskLevel, false, nil
	}
	if err := s.openMitigation(ctx, c.ID, j, now); err != nil {
		return pred.RiskLevel, false, err
	}
	return pred.RiskLevel, true, nil
}

func (s *Seeder) openMitigation(ctx context.Context, customerID uuid.UUID, j job, now func() time.Time) error {
	due := now().UTC().AddDate(0, 0, j.dueDays)
	assignee := j.assignee
	_, err := s.mitigations.Create(dbctx.New(ctx), services.MitigationInput{
		CustomerID:  customerID,
		RiskLevel:   string(types.RiskHigh),
		Type:        string(j.mitType),
		Description: j.desc,
		AssignedTo:  &assignee,
		DueDate:     &due,
	})
	if err != nil {
		return fmt.Errorf("create mitigation for %s: %w", customerID, err)
	}
	return nil
}
