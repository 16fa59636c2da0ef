package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

const (
	UsersCollection    = "users"
	SessionsCollection = "sessions"
)

var (
	clientMu       sync.Mutex
	clientInstance *mongo.Client
	dbInstance     *mongo.Database
)

// InitMongoDB connects, pings the primary and selects dbName. Calling it
// again after a successful init is a no-op.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	clientMu.Lock()
	defer clientMu.Unlock()

	if clientInstance != nil {
		return nil
	}

	log.Info().Str("database", dbName).Msg("Initializing MongoDB client")
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return err
	}

	clientInstance = client
	dbInstance = client.Database(dbName)
	log.Info().Msg("MongoDB client initialized successfully.")
	return nil
}

// GetDB returns the database selected by InitMongoDB, or nil.
func GetDB() *mongo.Database {
	clientMu.Lock()
	defer clientMu.Unlock()
	return dbInstance
}

// Ping checks the primary with a short timeout. Used by the health endpoint.
func Ping(ctx context.Context) error {
	clientMu.Lock()
	client := clientInstance
	clientMu.Unlock()

	if client == nil {
		return errors.New("mongodb client is not initialized")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx, readpref.Primary())
}

// CloseMongoDB disconnects the MongoDB client.
func CloseMongoDB(ctx context.Context) {
	clientMu.Lock()
	defer clientMu.Unlock()

	if clientInstance == nil {
		return
	}
	log.Info().Msg("Closing MongoDB connection.")
	if err := clientInstance.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing MongoDB connection")
	}
	clientInstance = nil
	dbInstance = nil
}
