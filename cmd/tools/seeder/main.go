// Seeder loads demo content for local development: destinations, retreats
// with packages and departures, a handful of posts and pages, and an admin
// account. Safe to re-run; every insert is an upsert keyed on slug or email.
package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swellway/swellway-api/internal/auth"
	"github.com/swellway/swellway-api/internal/config"
	"github.com/swellway/swellway-api/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, "swellway-seeder")
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	seedRetreats(ctx, pool)
	seedContent(ctx, pool)
	seedAdmin(ctx, pool, cfg)

	log.Println("seeding completed")
}

func seedRetreats(ctx context.Context, pool *pgxpool.Pool) {
	destinations := []struct {
		Slug    string
		Name    string
		Country string
		Desc    string
	}{
		{"ericeira", "Ericeira", "PT", "World Surfing Reserve on Portugal's west coast."},
		{"taghazout", "Taghazout", "MA", "Point breaks and year-round sun in southern Morocco."},
		{"fuerteventura", "Fuerteventura", "ES", "Consistent Atlantic swell in the Canary Islands."},
		{"hossegor", "Hossegor", "FR", "Heavy beach breaks on the French Atlantic coast."},
	}

	log.Println("seeding destinations")
	destIDs := make(map[string]string)
	for _, d := range destinations {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO destinations (slug, name, country_code, description)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
			RETURNING id`,
			d.Slug, d.Name, d.Country, d.Desc).Scan(&id)
		if err != nil {
			log.Printf("seed destination %s: %v", d.Slug, err)
			continue
		}
		destIDs[d.Slug] = id
	}

	retreats := []struct {
		Dest   string
		Slug   string
		Title  string
		Summary string
		Price  string
		Levels string
	}{
		{"ericeira", "ericeira-swell-week", "Ericeira Swell Week", "Seven days of reef and beach breaks with daily coaching.", "700.00", "{beginner,intermediate}"},
		{"taghazout", "taghazout-point-break-camp", "Taghazout Point Break Camp", "Chase long right-handers from Anchor Point to Boilers.", "560.00", "{intermediate,advanced}"},
		{"fuerteventura", "fuerte-winter-escape", "Fuerteventura Winter Escape", "Trade the cold for reliable north shore swell.", "640.00", "{beginner,intermediate,advanced}"},
		{"hossegor", "hossegor-barrel-week", "Hossegor Barrel Week", "Heavy sandbar tubes for surfers who want to push it.", "820.00", "{advanced}"},
	}

	log.Println("seeding retreats")
	for _, r := range retreats {
		destID, ok := destIDs[r.Dest]
		if !ok {
			log.Printf("missing destination for retreat %s", r.Slug)
			continue
		}
		// Client-generated id so packages and departures can reference the
		// retreat without a second round trip on the conflict path.
		retreatID := uuid.NewString()
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO retreats (id, destination_id, slug, title, summary, base_price, currency, skill_levels, published)
			VALUES ($1, $2, $3, $4, $5, $6, 'EUR', $7, TRUE)
			ON CONFLICT (slug) DO UPDATE SET title = EXCLUDED.title, summary = EXCLUDED.summary, base_price = EXCLUDED.base_price
			RETURNING id`,
			retreatID, destID, r.Slug, r.Title, r.Summary, r.Price, r.Levels).Scan(&id)
		if err != nil {
			log.Printf("seed retreat %s: %v", r.Slug, err)
			continue
		}

		packages := []struct {
			Name      string
			Price     string
			MaxGuests int
		}{
			{"Shared room", r.Price, 6},
			{"Private room", addEuros(r.Price, 180), 2},
		}
		for _, p := range packages {
			if _, err := pool.Exec(ctx, `
				INSERT INTO retreat_packages (retreat_id, name, price, max_guests)
				SELECT $1, $2, $3, $4
				WHERE NOT EXISTS (
					SELECT 1 FROM retreat_packages WHERE retreat_id = $1 AND name = $2
				)`,
				id, p.Name, p.Price, p.MaxGuests); err != nil {
				log.Printf("seed package %s for %s: %v", p.Name, r.Slug, err)
			}
		}

		start := nextSaturday()
		for week := 0; week < 8; week++ {
			from := start.AddDate(0, 0, 7*week)
			to := from.AddDate(0, 0, 7)
			if _, err := pool.Exec(ctx, `
				INSERT INTO retreat_departures (retreat_id, start_date, end_date, spots_total)
				SELECT $1, $2, $3, 12
				WHERE NOT EXISTS (
					SELECT 1 FROM retreat_departures WHERE retreat_id = $1 AND start_date = $2
				)`,
				id, from, to); err != nil {
				log.Printf("seed departure %s for %s: %v", from.Format("2006-01-02"), r.Slug, err)
			}
		}
	}
}

func seedContent(ctx context.Context, pool *pgxpool.Pool) {
	posts := []struct {
		Slug    string
		Tags    string
		Title   string
		Excerpt string
		Body    string
		TitleES string
	}{
		{
			"swell-forecasting-101", "{guides,forecasting}",
			"Swell Forecasting 101", "How to read a surf forecast before you book.",
			"Period, direction, and wind matter more than raw wave height. Here is how we read a chart before picking a week.",
			"Previsión de olas 101",
		},
		{
			"packing-for-a-surf-week", "{guides,travel}",
			"Packing for a Surf Week", "The short list that actually matters.",
			"A 3/2 wetsuit, reef-safe sunscreen, and zinc. Everything else you can rent or buy at the camp.",
			"Qué llevar a una semana de surf",
		},
	}

	log.Println("seeding posts")
	for _, p := range posts {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO posts (slug, status, tags, published_at)
			VALUES ($1, 'published', $2, now())
			ON CONFLICT (slug) DO UPDATE SET tags = EXCLUDED.tags
			RETURNING id`,
			p.Slug, p.Tags).Scan(&id)
		if err != nil {
			log.Printf("seed post %s: %v", p.Slug, err)
			continue
		}
		translations := []struct {
			Locale, Title, Excerpt, Body string
		}{
			{"en", p.Title, p.Excerpt, p.Body},
			{"es", p.TitleES, p.Excerpt, p.Body},
		}
		for _, tr := range translations {
			if _, err := pool.Exec(ctx, `
				INSERT INTO post_translations (post_id, locale, title, excerpt, body)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (post_id, locale) DO UPDATE SET title = EXCLUDED.title, excerpt = EXCLUDED.excerpt, body = EXCLUDED.body`,
				id, tr.Locale, tr.Title, tr.Excerpt, tr.Body); err != nil {
				log.Printf("seed translation %s/%s: %v", p.Slug, tr.Locale, err)
			}
		}
	}

	pages := []struct {
		Slug, Locale, Title, Meta, Body string
	}{
		{"about", "en", "About Swellway", "Who we are and why we run surf retreats.", "Swellway started as two friends with a van and a quiver."},
		{"about", "es", "Sobre Swellway", "Quiénes somos y por qué organizamos retiros de surf.", "Swellway empezó con dos amigos, una furgoneta y unas tablas."},
		{"faq", "en", "Frequently Asked Questions", "Booking, payment, and cancellation answers.", "Bookings are confirmed once payment clears. Unpaid holds expire automatically."},
	}

	log.Println("seeding pages")
	for _, pg := range pages {
		if _, err := pool.Exec(ctx, `
			INSERT INTO pages (slug, locale, title, meta_description, body)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (slug, locale) DO UPDATE SET title = EXCLUDED.title, meta_description = EXCLUDED.meta_description, body = EXCLUDED.body, updated_at = now()`,
			pg.Slug, pg.Locale, pg.Title, pg.Meta, pg.Body); err != nil {
			log.Printf("seed page %s/%s: %v", pg.Slug, pg.Locale, err)
		}
	}
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config) {
	email := strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL"))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD not set, skipping admin seed")
		return
	}

	svc, err := auth.NewService(auth.Config{
		Repo:   &auth.PGRepository{Pool: pool},
		Secret: cfg.JWTSecret,
	})
	if err != nil {
		log.Fatalf("initialise auth service: %v", err)
	}

	log.Println("seeding admin user")
	user, err := svc.EnsureUser(ctx, "Swellway Admin", email, password, []string{auth.RoleAdmin})
	if err != nil {
		log.Printf("seed admin %s: %v", email, err)
		return
	}
	log.Printf("admin user ready: %s", user.Email)
}

// addEuros bumps a decimal price string by a whole-euro amount. Seed data
// only; real money math lives in the booking service.
func addEuros(price string, delta int) string {
	parts := strings.SplitN(price, ".", 2)
	frac := "00"
	if len(parts) == 2 {
		frac = parts[1]
	}
	whole, err := strconv.Atoi(parts[0])
	if err != nil {
		return price
	}
	return strconv.Itoa(whole+delta) + "." + frac
}

func nextSaturday() time.Time {
	now := time.Now().UTC()
	days := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}
