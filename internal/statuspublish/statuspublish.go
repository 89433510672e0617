// Copyright 2025 Blockscout
//
// Package statuspublish broadcasts status-gate transitions to
// Firestore for live UI consumers. The Enabled no-op switch means
// local development never needs real GCP credentials.
package statuspublish

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/blockscout/indexing-core/internal/statusgate"
)

// Client wraps the Firestore SDK with an Enabled no-op switch.
type Client struct {
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	logger    *log.Logger
	enabled   bool
	mu        sync.RWMutex
}

// ClientConfig configures a Client.
type ClientConfig struct {
	ProjectID       string
	CredentialsFile string
	Enabled         bool
	Logger          *log.Logger
}

// NewClient dials Firestore, or returns a no-op client if cfg.Enabled
// is false.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[StatusPublish] ", log.LstdFlags)
	}

	client := &Client{projectID: cfg.ProjectID, logger: cfg.Logger, enabled: cfg.Enabled}
	if !cfg.Enabled {
		cfg.Logger.Println("firestore status publishing is disabled - running in no-op mode")
		return client, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required when status publishing is enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	client.app = app
	client.firestore = fsClient
	cfg.Logger.Printf("firestore status publishing initialized for project: %s", cfg.ProjectID)
	return client, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firestore != nil {
		return c.firestore.Close()
	}
	return nil
}

// IsEnabled reports whether writes actually reach Firestore.
func (c *Client) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Broadcaster implements statusgate.Publisher, writing each Transition
// to /indexingStreams/{streamName}/transitions/{id}.
type Broadcaster struct {
	client *Client
	logger *log.Logger
}

func NewBroadcaster(client *Client) *Broadcaster {
	return &Broadcaster{client: client, logger: log.New(log.Writer(), "[StatusPublish] ", log.LstdFlags)}
}

// Publish implements statusgate.Publisher. Firestore write errors are
// logged, not returned: a missed status update must never block or
// fail the indexing pipeline it describes.
func (b *Broadcaster) Publish(t statusgate.Transition) {
	if !b.client.IsEnabled() {
		b.logger.Printf("status publishing disabled - skipping transition for stream=%s %s->%s", t.StreamName, t.From, t.To)
		return
	}
	if err := b.publish(context.Background(), t); err != nil {
		b.logger.Printf("failed to publish transition for stream=%s: %v", t.StreamName, err)
	}
}

func (b *Broadcaster) publish(ctx context.Context, t statusgate.Transition) error {
	docID := fmt.Sprintf("%d", time.Now().UnixNano())
	docPath := fmt.Sprintf("indexingStreams/%s/transitions/%s", t.StreamName, docID)
	_, err := b.client.firestore.Doc(docPath).Set(ctx, map[string]interface{}{
		"streamName": t.StreamName,
		"from":       string(t.From),
		"to":         string(t.To),
		"behind":     t.Behind,
		"observedAt": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write transition document: %w", err)
	}
	return nil
}
