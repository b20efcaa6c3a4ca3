// seed populates a backend with fake users and posts so the feed has
// something to show during development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/fusehub/feedsync/internal/backend"
	"github.com/fusehub/feedsync/internal/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		backendURL string
		apiKey     string
		users      int
		posts      int
		seed       int64
	)

	flag.StringVar(&backendURL, "backend", envOrDefault("FEEDSYNC_BACKEND_URL", ""), "backend REST base URL")
	flag.StringVar(&apiKey, "apikey", envOrDefault("FEEDSYNC_API_KEY", ""), "backend API key")
	flag.IntVar(&users, "users", 5, "number of fake users to create")
	flag.IntVar(&posts, "posts", 20, "number of fake posts to create")
	flag.Int64Var(&seed, "seed", 0, "random seed (0 means random)")
	flag.Parse()

	if backendURL == "" {
		return fmt.Errorf("--backend is required (or set FEEDSYNC_BACKEND_URL)")
	}

	faker := gofakeit.New(seed)
	ctx := context.Background()
	client := backend.NewClient(backendURL, apiKey)

	authors := make([]domain.UserSnapshot, 0, users)
	for i := 0; i < users; i++ {
		user := domain.UserSnapshot{
			ID:        domain.UserID(uuid.NewString()),
			Name:      faker.Name(),
			AvatarURL: faker.ImageURL(128, 128),
		}
		if err := client.CreateUser(ctx, user); err != nil {
			return err
		}
		authors = append(authors, user)
	}
	fmt.Printf("Created %d users\n", len(authors))

	for i := 0; i < posts; i++ {
		post := domain.Post{
			ID:     domain.PostID(uuid.NewString()),
			Author: authors[faker.Number(0, len(authors)-1)],
			Body:   fmt.Sprintf("<p>%s</p>", faker.Sentence(faker.Number(5, 20))),
		}
		if faker.Bool() {
			post.MediaURL = faker.ImageURL(640, 480)
		}
		if err := client.CreatePost(ctx, post); err != nil {
			return err
		}
	}
	fmt.Printf("Created %d posts\n", posts)

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
