package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/firestore"
	"github.com/foxseedlab/chumon/internal/config"
	"github.com/foxseedlab/chumon/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
	"google.golang.org/api/option"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		slog.Info("startup: selecting storage backend", "backend", cfg.StorageBackend)
		switch cfg.StorageBackend {
		case config.StorageBackendPostgres:
			return newPostgres(ctx, cfg.DatabaseURL)
		case config.StorageBackendFirestore:
			return newFirestore(ctx, cfg.GoogleCloudProjectID, cfg.GoogleCloudCredentialsJSON)
		default:
			return NewMemoryRepository(), nil
		}
	})
}

func newPostgres(ctx context.Context, databaseURL string) (repository.Repository, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigration(ctx, p); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return NewPostgresRepository(p), nil
}

func newFirestore(ctx context.Context, projectID, credentialsJSON string) (repository.Repository, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/datastore"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	client, err := firestore.NewClient(ctx, projectID, option.WithAuthCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return NewFirestoreRepository(client), nil
}
