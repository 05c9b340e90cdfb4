package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/watchparty/internal/app"
	"github.com/sharetube/watchparty/pkg/deeplink"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	host = configVar[string]{
		envKey:       "WATCHPARTY_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	port = configVar[int]{
		envKey:       "WATCHPARTY_PORT",
		flagKey:      "port",
		defaultValue: 8080,
		usage:        "Server port",
	}
	logLevel = configVar[string]{
		envKey:       "WATCHPARTY_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	storeBackend = configVar[string]{
		envKey:       "WATCHPARTY_STORE",
		flagKey:      "store",
		defaultValue: app.StoreMemory,
		usage:        "Party store backend: memory, redis or nats",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
	natsURL = configVar[string]{
		envKey:       "NATS_URL",
		flagKey:      "nats-url",
		defaultValue: "nats://localhost:4222",
		usage:        "NATS server url",
	}
	natsBucket = configVar[string]{
		envKey:       "NATS_BUCKET",
		flagKey:      "nats-bucket",
		defaultValue: "parties",
		usage:        "JetStream key/value bucket for parties",
	}
	partyTTL = configVar[time.Duration]{
		envKey:       "WATCHPARTY_PARTY_TTL",
		flagKey:      "party-ttl",
		defaultValue: 24 * time.Hour,
		usage:        "How long an untouched party record is kept",
	}
	partyID = configVar[string]{
		envKey:       "WATCHPARTY_PARTY_ID",
		flagKey:      "party-id",
		defaultValue: "",
		usage:        "Party to join",
	}
	linkScheme = configVar[string]{
		envKey:       "WATCHPARTY_LINK_SCHEME",
		flagKey:      "link-scheme",
		defaultValue: deeplink.DefaultScheme,
		usage:        "Deep link scheme for party links",
	}
	allowParticipantControl = configVar[bool]{
		envKey:       "WATCHPARTY_ALLOW_PARTICIPANT_CONTROL",
		flagKey:      "allow-participant-control",
		defaultValue: false,
		usage:        "Let participants publish play state and seeks",
	}
	mediaURL = configVar[string]{
		envKey:       "WATCHPARTY_MEDIA_URL",
		flagKey:      "media-url",
		defaultValue: "",
		usage:        "Url of the video loaded at start",
	}
	mediaTitle = configVar[string]{
		envKey:       "WATCHPARTY_MEDIA_TITLE",
		flagKey:      "media-title",
		defaultValue: "",
		usage:        "Title of the video loaded at start",
	}
	mediaSubtitle = configVar[string]{
		envKey:       "WATCHPARTY_MEDIA_SUBTITLE",
		flagKey:      "media-subtitle",
		defaultValue: "",
		usage:        "Subtitle of the video loaded at start",
	}
	mediaDuration = configVar[float64]{
		envKey:       "WATCHPARTY_MEDIA_DURATION",
		flagKey:      "media-duration",
		defaultValue: 0,
		usage:        "Video duration in seconds",
	}
)

func bind[T any](v configVar[T]) {
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	pflag.String(host.flagKey, host.defaultValue, host.usage)
	pflag.Int(port.flagKey, port.defaultValue, port.usage)
	pflag.String(logLevel.flagKey, logLevel.defaultValue, logLevel.usage)
	pflag.String(storeBackend.flagKey, storeBackend.defaultValue, storeBackend.usage)
	pflag.String(redisHost.flagKey, redisHost.defaultValue, redisHost.usage)
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, redisPort.usage)
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, redisPassword.usage)
	pflag.String(natsURL.flagKey, natsURL.defaultValue, natsURL.usage)
	pflag.String(natsBucket.flagKey, natsBucket.defaultValue, natsBucket.usage)
	pflag.Duration(partyTTL.flagKey, partyTTL.defaultValue, partyTTL.usage)
	pflag.String(partyID.flagKey, partyID.defaultValue, partyID.usage)
	pflag.String(linkScheme.flagKey, linkScheme.defaultValue, linkScheme.usage)
	pflag.Bool(allowParticipantControl.flagKey, allowParticipantControl.defaultValue, allowParticipantControl.usage)
	pflag.String(mediaURL.flagKey, mediaURL.defaultValue, mediaURL.usage)
	pflag.String(mediaTitle.flagKey, mediaTitle.defaultValue, mediaTitle.usage)
	pflag.String(mediaSubtitle.flagKey, mediaSubtitle.defaultValue, mediaSubtitle.usage)
	pflag.Float64(mediaDuration.flagKey, mediaDuration.defaultValue, mediaDuration.usage)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	bind(host)
	bind(port)
	bind(logLevel)
	bind(storeBackend)
	bind(redisHost)
	bind(redisPort)
	bind(redisPassword)
	bind(natsURL)
	bind(natsBucket)
	bind(partyTTL)
	bind(partyID)
	bind(linkScheme)
	bind(allowParticipantControl)
	bind(mediaURL)
	bind(mediaTitle)
	bind(mediaSubtitle)
	bind(mediaDuration)

	return &app.AppConfig{
		Host:                    viper.GetString(host.flagKey),
		Port:                    viper.GetInt(port.flagKey),
		LogLevel:                viper.GetString(logLevel.flagKey),
		Store:                   viper.GetString(storeBackend.flagKey),
		RedisHost:               viper.GetString(redisHost.flagKey),
		RedisPort:               viper.GetInt(redisPort.flagKey),
		RedisPassword:           viper.GetString(redisPassword.flagKey),
		NatsURL:                 viper.GetString(natsURL.flagKey),
		NatsBucket:              viper.GetString(natsBucket.flagKey),
		PartyTTL:                viper.GetDuration(partyTTL.flagKey),
		PartyID:                 viper.GetString(partyID.flagKey),
		LinkScheme:              viper.GetString(linkScheme.flagKey),
		AllowParticipantControl: viper.GetBool(allowParticipantControl.flagKey),
		MediaURL:                viper.GetString(mediaURL.flagKey),
		MediaTitle:              viper.GetString(mediaTitle.flagKey),
		MediaSubtitle:           viper.GetString(mediaSubtitle.flagKey),
		MediaDuration:           viper.GetFloat64(mediaDuration.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	if err := app.Run(ctx, appConfig); err != nil {
		log.Fatal(err)
	}
}
