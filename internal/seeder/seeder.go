// Package seeder generates realistic demo traffic against a running
// analytics service: users with traits, browsing sessions, purchases,
// and the occasional error event.
package seeder

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/lovendo/analytics-service/internal/client"
)

type Config struct {
	ServerURL string
	Users     int
	Events    int
	// TimeSpread scatters event timestamps over the past duration;
	// zero stamps everything with the current time.
	TimeSpread time.Duration
	Seed       int64
}

type Runner struct {
	cfg    Config
	client *client.Client
	rng    *rand.Rand
}

// Weighted catalog of the shop's events. view_gift dominates, purchases
// are rare, errors rarer.
var eventCatalog = []struct {
	name   string
	weight float64
}{
	{"view_gift", 0.45},
	{"search", 0.20},
	{"add_to_cart", 0.15},
	{"signup", 0.08},
	{"checkout_started", 0.06},
	{"purchase", 0.04},
	{"error", 0.02},
}

var giftCategories = []string{"flowers", "chocolate", "jewelry", "experience", "personalized"}

func NewRunner(cfg Config) *Runner {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	gofakeit.Seed(cfg.Seed)
	return &Runner{
		cfg:    cfg,
		client: client.New(cfg.ServerURL),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Run identifies the demo users and streams the configured number of
// events. Returns the number of events that were accepted.
func (r *Runner) Run() (int, error) {
	log.Printf("Seeding %d users and %d events against %s", r.cfg.Users, r.cfg.Events, r.cfg.ServerURL)

	users := make([]string, r.cfg.Users)
	for i := range users {
		users[i] = fmt.Sprintf("user-%s", gofakeit.UUID()[:8])
		traits := map[string]interface{}{
			"name":  gofakeit.Name(),
			"email": gofakeit.Email(),
			"city":  gofakeit.City(),
			"plan":  r.pick([]string{"free", "free", "free", "pro"}),
		}
		if err := r.client.Identify(users[i], traits); err != nil {
			return 0, fmt.Errorf("identify failed: %w", err)
		}
	}

	sent := 0
	for i := 0; i < r.cfg.Events; i++ {
		userID := users[r.rng.Intn(len(users))]
		name := r.pickEvent()

		req := &client.TrackRequest{
			Event:      name,
			UserID:     userID,
			Properties: r.properties(name),
		}
		if r.cfg.TimeSpread > 0 {
			ts := time.Now().UTC().Add(-time.Duration(r.rng.Int63n(int64(r.cfg.TimeSpread))))
			req.Timestamp = &ts
		}

		if err := r.client.Track(req); err != nil {
			log.Printf("track failed: %v", err)
			continue
		}
		sent++
	}

	if err := r.client.Flush(); err != nil {
		log.Printf("flush failed: %v", err)
	}
	log.Printf("Seeding complete: %d/%d events accepted", sent, r.cfg.Events)
	return sent, nil
}

func (r *Runner) pickEvent() string {
	roll := r.rng.Float64()
	var cum float64
	for _, e := range eventCatalog {
		cum += e.weight
		if roll < cum {
			return e.name
		}
	}
	return eventCatalog[0].name
}

func (r *Runner) properties(event string) map[string]interface{} {
	switch event {
	case "view_gift", "add_to_cart":
		return map[string]interface{}{
			"category": r.pick(giftCategories),
			"price":    gofakeit.Price(50, 2500),
		}
	case "search":
		return map[string]interface{}{
			"query": gofakeit.ProductName(),
		}
	case "purchase":
		return map[string]interface{}{
			"category": r.pick(giftCategories),
			"amount":   gofakeit.Price(50, 2500),
			"currency": "TRY",
		}
	case "error":
		return map[string]interface{}{
			"message": gofakeit.HackerPhrase(),
			"code":    r.pick([]string{"500", "502", "payment_declined"}),
		}
	default:
		return nil
	}
}

func (r *Runner) pick(options []string) string {
	return options[r.rng.Intn(len(options))]
}
