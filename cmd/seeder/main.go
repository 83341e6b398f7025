package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"maildispatch/internal/csvparser"
	"maildispatch/internal/models"
)

// Dev/ops tool: creates a campaign with recipients parsed from a CSV
// (Email, Name columns), and optionally one mailbox, so the dispatcher
// has something to chew on in a fresh environment.
func main() {
	subject := flag.String("subject", "Test campaign", "campaign subject")
	body := flag.String("body", "<p>Hello from the dispatch engine.</p>", "campaign body html")
	csvPath := flag.String("recipients", "", "path to recipients csv (Email,Name)")
	mailbox := flag.String("mailbox", "", "mailbox email to create (optional)")
	password := flag.String("password", "", "mailbox password")
	host := flag.String("host", "localhost", "mailbox smtp host")
	port := flag.Int("port", 1025, "mailbox smtp port")
	dailyLimit := flag.Int("daily-limit", 100, "mailbox daily send limit")
	perEmail := flag.Int("recipients-per-email", 50, "mailbox recipients per physical send")
	flag.Parse()

	if *csvPath == "" {
		log.Fatal("missing -recipients flag")
	}

	_ = godotenv.Load()

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close(ctx)

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	rows, err := csvparser.ParseRecipientRows(f, 0)
	if err != nil {
		log.Fatalf("failed to parse %s: %v", *csvPath, err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer tx.Rollback(ctx)

	var campaignID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO campaigns (subject, body, status, sent_count, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, NOW(), NOW())
		 RETURNING id`,
		*subject, *body, models.CampaignPending,
	).Scan(&campaignID)
	if err != nil {
		log.Fatalf("failed to create campaign: %v", err)
	}

	for _, r := range rows {
		_, err := tx.Exec(ctx,
			`INSERT INTO campaign_recipients (campaign_id, email, name, status)
			 VALUES ($1, $2, $3, $4)`,
			campaignID, r.Email, r.Name, models.RecipientPending,
		)
		if err != nil {
			log.Fatalf("failed to insert recipient %s: %v", r.Email, err)
		}
	}

	if *mailbox != "" {
		_, err := tx.Exec(ctx,
			`INSERT INTO mailboxes
			   (email, password, host, port, daily_limit, recipients_per_email,
			    emails_sent_today, last_sent_at, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, 0, 'epoch', TRUE)`,
			*mailbox, *password, *host, *port, *dailyLimit, *perEmail,
		)
		if err != nil {
			log.Fatalf("failed to insert mailbox: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Seeded campaign %d with %d recipients\n", campaignID, len(rows))
}
