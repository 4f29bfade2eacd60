package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/jukebox/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

// register declares the flag and binds it to its env key and default.
func (v configVar[T]) register() {
	switch d := any(v.defaultValue).(type) {
	case string:
		pflag.String(v.flagKey, d, v.usage)
	case int:
		pflag.Int(v.flagKey, d, v.usage)
	case bool:
		pflag.Bool(v.flagKey, d, v.usage)
	case float64:
		pflag.Float64(v.flagKey, d, v.usage)
	case time.Duration:
		pflag.Duration(v.flagKey, d, v.usage)
	default:
		panic(fmt.Sprintf("unsupported config type %T for %s", d, v.flagKey))
	}

	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	writeTimeout = configVar[time.Duration]{
		envKey:       "SERVER_WRITE_TIMEOUT",
		flagKey:      "write-timeout",
		defaultValue: 5 * time.Second,
		usage:        "Websocket write timeout",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
	redisDB = configVar[int]{
		envKey:       "REDIS_DB",
		flagKey:      "redis-db",
		defaultValue: 0,
		usage:        "Redis database",
	}
	redisEvents = configVar[bool]{
		envKey:       "REDIS_EVENTS",
		flagKey:      "redis-events",
		defaultValue: false,
		usage:        "Publish room events on redis pub/sub",
	}
	storeBackend = configVar[string]{
		envKey:       "STORE_BACKEND",
		flagKey:      "store",
		defaultValue: app.StoreRedis,
		usage:        "Room store backend (redis|mongo)",
	}
	roomTTL = configVar[time.Duration]{
		envKey:       "STORE_ROOM_TTL",
		flagKey:      "room-ttl",
		defaultValue: 14 * 24 * time.Hour,
		usage:        "Expiration of rooms in the redis store",
	}
	mongoURI = configVar[string]{
		envKey:       "MONGO_URI",
		flagKey:      "mongo-uri",
		defaultValue: "",
		usage:        "Mongo connection uri",
	}
	mongoDatabase = configVar[string]{
		envKey:       "MONGO_DATABASE",
		flagKey:      "mongo-database",
		defaultValue: "jukebox",
		usage:        "Mongo database",
	}
	lockBackend = configVar[string]{
		envKey:       "LOCK_BACKEND",
		flagKey:      "lock",
		defaultValue: app.LockMemory,
		usage:        "Room lock backend (memory|redis)",
	}
	natsURL = configVar[string]{
		envKey:       "NATS_URL",
		flagKey:      "nats-url",
		defaultValue: "",
		usage:        "NATS url, room events are published there when set",
	}
	providerURL = configVar[string]{
		envKey:       "PROVIDER_URL",
		flagKey:      "provider-url",
		defaultValue: "http://localhost:8081",
		usage:        "Track catalogue base url",
	}
	providerTimeout = configVar[time.Duration]{
		envKey:       "PROVIDER_TIMEOUT",
		flagKey:      "provider-timeout",
		defaultValue: 5 * time.Second,
		usage:        "Track catalogue request timeout",
	}
	providerAttempts = configVar[int]{
		envKey:       "PROVIDER_ATTEMPTS",
		flagKey:      "provider-attempts",
		defaultValue: 3,
		usage:        "Track catalogue attempts per lookup",
	}
	providerBackoff = configVar[time.Duration]{
		envKey:       "PROVIDER_BACKOFF",
		flagKey:      "provider-backoff",
		defaultValue: 200 * time.Millisecond,
		usage:        "Initial retry backoff",
	}
	providerMaxBackoff = configVar[time.Duration]{
		envKey:       "PROVIDER_MAX_BACKOFF",
		flagKey:      "provider-max-backoff",
		defaultValue: 2 * time.Second,
		usage:        "Maximum retry backoff",
	}
	queueTick = configVar[time.Duration]{
		envKey:       "ENGINE_QUEUE_TICK",
		flagKey:      "queue-tick",
		defaultValue: 250 * time.Millisecond,
		usage:        "Queue engine tick interval",
	}
	rotationTick = configVar[time.Duration]{
		envKey:       "ENGINE_ROTATION_TICK",
		flagKey:      "rotation-tick",
		defaultValue: 250 * time.Millisecond,
		usage:        "Rotation engine tick interval",
	}
	idleSweepInterval = configVar[time.Duration]{
		envKey:       "ENGINE_IDLE_SWEEP_INTERVAL",
		flagKey:      "idle-sweep-interval",
		defaultValue: 30 * time.Second,
		usage:        "Idle DJ sweep interval, 0 disables the sweep",
	}
	idleTimeout = configVar[time.Duration]{
		envKey:       "ENGINE_IDLE_TIMEOUT",
		flagKey:      "idle-timeout",
		defaultValue: 5 * time.Minute,
		usage:        "Inactivity after which a DJ with an empty queue leaves the rotation",
	}
	prepareOffset = configVar[time.Duration]{
		envKey:       "ENGINE_PREPARE_OFFSET",
		flagKey:      "prepare-offset",
		defaultValue: 30 * time.Second,
		usage:        "Time before the end of a track to send prepare-next",
	}
	softOffset = configVar[time.Duration]{
		envKey:       "ENGINE_SOFT_OFFSET",
		flagKey:      "soft-offset",
		defaultValue: 10 * time.Second,
		usage:        "Time before the end of a track to send ending-soon",
	}
	hardTolerance = configVar[time.Duration]{
		envKey:       "ENGINE_HARD_TOLERANCE",
		flagKey:      "hard-tolerance",
		defaultValue: 250 * time.Millisecond,
		usage:        "Time before the end of a track at which it counts as ended",
	}
	lockCooldown = configVar[time.Duration]{
		envKey:       "ENGINE_LOCK_COOLDOWN",
		flagKey:      "lock-cooldown",
		defaultValue: 2 * time.Second,
		usage:        "How long a room stays locked after an engine advance",
	}
	lockTTL = configVar[time.Duration]{
		envKey:       "LOCK_TTL",
		flagKey:      "lock-ttl",
		defaultValue: 30 * time.Second,
		usage:        "Room lock expiration",
	}
	lockWait = configVar[time.Duration]{
		envKey:       "LOCK_WAIT",
		flagKey:      "lock-wait",
		defaultValue: 3 * time.Second,
		usage:        "How long manual skips wait for a locked room",
	}
	advanceTimeout = configVar[time.Duration]{
		envKey:       "ENGINE_ADVANCE_TIMEOUT",
		flagKey:      "advance-timeout",
		defaultValue: 10 * time.Second,
		usage:        "Timeout of one engine advance",
	}
	voteSkipRatio = configVar[float64]{
		envKey:       "VOTE_SKIP_RATIO",
		flagKey:      "vote-skip-ratio",
		defaultValue: 0.5,
		usage:        "Default share of members needed to skip",
	}
	coopVoteRatio = configVar[float64]{
		envKey:       "COOP_VOTE_RATIO",
		flagKey:      "coop-vote-ratio",
		defaultValue: 2.0 / 3.0,
		usage:        "Share of members needed to skip in coop rooms",
	}
	autoplayMax = configVar[int]{
		envKey:       "AUTOPLAY_MAX",
		flagKey:      "autoplay-max",
		defaultValue: 5,
		usage:        "Consecutive autoplayed tracks before a room stops",
	}
	driftIgnore = configVar[time.Duration]{
		envKey:       "DRIFT_IGNORE",
		flagKey:      "drift-ignore",
		defaultValue: 200 * time.Millisecond,
		usage:        "Drift below which clients are left alone",
	}
	driftHard = configVar[time.Duration]{
		envKey:       "DRIFT_HARD",
		flagKey:      "drift-hard",
		defaultValue: 800 * time.Millisecond,
		usage:        "Drift from which clients must seek",
	}
	driftJitter = configVar[time.Duration]{
		envKey:       "DRIFT_JITTER",
		flagKey:      "drift-jitter",
		defaultValue: time.Second,
		usage:        "Report-to-report deviation flagged as jitter",
	}
	cacheSize = configVar[int]{
		envKey:       "CACHE_SIZE",
		flagKey:      "cache-size",
		defaultValue: 1024,
		usage:        "Room read cache size",
	}
	cacheTTL = configVar[time.Duration]{
		envKey:       "CACHE_TTL",
		flagKey:      "cache-ttl",
		defaultValue: 2 * time.Second,
		usage:        "Room read cache ttl",
	}
	conflictRetries = configVar[int]{
		envKey:       "CONFLICT_RETRIES",
		flagKey:      "conflict-retries",
		defaultValue: 3,
		usage:        "Attempts of a room update on version conflicts",
	}
)

func loadAppConfig() *app.AppConfig {
	for _, register := range []func(){
		host.register, port.register, logLevel.register, writeTimeout.register,
		redisPort.register, redisHost.register, redisPassword.register, redisDB.register, redisEvents.register,
		storeBackend.register, roomTTL.register, mongoURI.register, mongoDatabase.register,
		lockBackend.register, natsURL.register,
		providerURL.register, providerTimeout.register, providerAttempts.register,
		providerBackoff.register, providerMaxBackoff.register,
		queueTick.register, rotationTick.register, idleSweepInterval.register, idleTimeout.register,
		prepareOffset.register, softOffset.register, hardTolerance.register,
		lockCooldown.register, lockTTL.register, lockWait.register, advanceTimeout.register,
		voteSkipRatio.register, coopVoteRatio.register, autoplayMax.register,
		driftIgnore.register, driftHard.register, driftJitter.register,
		cacheSize.register, cacheTTL.register, conflictRetries.register,
	} {
		register()
	}
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	config := &app.AppConfig{
		Host:                 viper.GetString(host.flagKey),
		Port:                 viper.GetInt(port.flagKey),
		LogLevel:             viper.GetString(logLevel.flagKey),
		WriteTimeout:         viper.GetDuration(writeTimeout.flagKey),
		RedisPort:            viper.GetInt(redisPort.flagKey),
		RedisHost:            viper.GetString(redisHost.flagKey),
		RedisPassword:        viper.GetString(redisPassword.flagKey),
		RedisDB:              viper.GetInt(redisDB.flagKey),
		RedisEvents:          viper.GetBool(redisEvents.flagKey),
		StoreBackend:         viper.GetString(storeBackend.flagKey),
		RoomTTL:              viper.GetDuration(roomTTL.flagKey),
		MongoURI:             viper.GetString(mongoURI.flagKey),
		MongoDatabase:        viper.GetString(mongoDatabase.flagKey),
		LockBackend:          viper.GetString(lockBackend.flagKey),
		NATSURL:              viper.GetString(natsURL.flagKey),
		ProviderURL:          viper.GetString(providerURL.flagKey),
		ProviderTimeout:      viper.GetDuration(providerTimeout.flagKey),
		ProviderAttempts:     viper.GetInt(providerAttempts.flagKey),
		ProviderBackoff:      viper.GetDuration(providerBackoff.flagKey),
		ProviderMaxBackoff:   viper.GetDuration(providerMaxBackoff.flagKey),
		QueueTickInterval:    viper.GetDuration(queueTick.flagKey),
		RotationTickInterval: viper.GetDuration(rotationTick.flagKey),
		IdleSweepInterval:    viper.GetDuration(idleSweepInterval.flagKey),
		IdleTimeout:          viper.GetDuration(idleTimeout.flagKey),
		PrepareOffset:        viper.GetDuration(prepareOffset.flagKey),
		SoftOffset:           viper.GetDuration(softOffset.flagKey),
		HardTolerance:        viper.GetDuration(hardTolerance.flagKey),
		LockCooldown:         viper.GetDuration(lockCooldown.flagKey),
		LockTTL:              viper.GetDuration(lockTTL.flagKey),
		LockWait:             viper.GetDuration(lockWait.flagKey),
		AdvanceTimeout:       viper.GetDuration(advanceTimeout.flagKey),
		VoteSkipRatio:        viper.GetFloat64(voteSkipRatio.flagKey),
		CoopVoteRatio:        viper.GetFloat64(coopVoteRatio.flagKey),
		AutoplayMax:          viper.GetInt(autoplayMax.flagKey),
		DriftIgnore:          viper.GetDuration(driftIgnore.flagKey),
		DriftHard:            viper.GetDuration(driftHard.flagKey),
		DriftJitter:          viper.GetDuration(driftJitter.flagKey),
		CacheSize:            viper.GetInt(cacheSize.flagKey),
		CacheTTL:             viper.GetDuration(cacheTTL.flagKey),
		ConflictRetries:      viper.GetInt(conflictRetries.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
