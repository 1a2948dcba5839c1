package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"
	"github.com/rssabbirdev/smart-clinic/internal/shared/config"
	"github.com/rssabbirdev/smart-clinic/internal/shared/types"
)

// StreamName is the single append-only stream carrying all visit
// lifecycle events for this deployment.
const StreamName = "clinic.visits"

// Bus is an EventStoreDB-backed Publisher.
type Bus struct {
	db *esdb.Client
}

// NewBus connects to EventStoreDB and verifies the connection.
func NewBus(ctx context.Context, cfg config.EventStoreConfig) (*Bus, error) {
	scheme := "esdb"
	tls := "true"
	if cfg.Insecure {
		tls = "false"
	}

	auth := ""
	if cfg.Username != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}

	connStr := fmt.Sprintf("%s://%s%s:%d?tls=%s", scheme, auth, cfg.Host, cfg.Port, tls)

	settings, err := esdb.ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	db, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create eventstore client: %w", err)
	}

	bus := &Bus{db: db}
	if err := bus.Health(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return bus, nil
}

// Publish appends the event to the visit stream.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = types.NewID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	eventID, err := uuid.Parse(event.ID.String())
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}

	esdbEvent := esdb.EventData{
		EventID:     eventID,
		EventType:   event.Type,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
	}

	_, err = b.db.AppendToStream(ctx, StreamName, esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, esdbEvent)

	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	return nil
}

// Health verifies the connection is alive.
func (b *Bus) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stream, err := b.db.ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)

	if err != nil {
		return fmt.Errorf("eventstore health check failed: %w", err)
	}
	stream.Close()

	return nil
}

// Close closes the underlying connection.
func (b *Bus) Close() {
	if b.db != nil {
		b.db.Close()
	}
}
