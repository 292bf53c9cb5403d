// Command seed provisions demo users in the store and posts a handful of
// sample reports to a running server's /enqueue endpoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/denisplanner/backend/internal/core"
	"github.com/denisplanner/backend/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var (
		dbPath = flag.String("db", os.Getenv("DB_PATH"), "SQLite database path")
		apiURL = flag.String("api", envOr("ENQUEUE_URL", "http://localhost:8080/enqueue"), "enqueue endpoint")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("DB_PATH (or -db) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(*dbPath)
	if err != nil {
		log.Fatalf("Store open failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if err := db.SeedReportTypes(ctx); err != nil {
		log.Fatalf("Type seeding failed: %v", err)
	}

	for _, u := range []struct{ name, email string }{
		{"Ant0in", "antoine.berthion@ulb.be"},
		{"bob", "bob@bob.bob"},
	} {
		id, err := db.CreateUser(ctx, u.name, u.email)
		if err != nil {
			log.Printf("User %s not created (may already exist): %v", u.name, err)
			continue
		}
		log.Printf("User %s created (id=%d)", u.name, id)
	}

	krakow := core.Coordinates{Latitude: 50.06143, Longitude: 19.93658}
	varsovia := core.Coordinates{Latitude: 60, Longitude: 20}

	messages := []core.ReportMessage{
		{
			UserName:     "Ant0in",
			UserLocation: core.Coordinates{Latitude: 50.05, Longitude: 19.95},
			LocationName: "Krakow",
			LocationPos:  krakow,
			ReportType:   core.TypeDelay,
			DelayMinutes: intPtr(10),
		},
		{
			UserName:     "bob",
			UserLocation: core.Coordinates{Latitude: 50.05, Longitude: 19.95},
			LocationName: "Krakow",
			LocationPos:  krakow,
			ReportType:   core.TypeDelay,
			DelayMinutes: intPtr(20),
		},
		{
			UserName:     "bob",
			UserLocation: varsovia,
			LocationName: "Varsovia",
			LocationPos:  varsovia,
			ReportType:   core.TypeAccident,
		},
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for _, msg := range messages {
		if err := post(client, *apiURL, &msg); err != nil {
			log.Fatalf("Enqueue failed: %v", err)
		}
		log.Printf("Enqueued %s report at %s by %s", msg.ReportType, msg.LocationName, msg.UserName)
	}
}

func post(client *http.Client, url string, msg *core.ReportMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intPtr(v int) *int { return &v }
