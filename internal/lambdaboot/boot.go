// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Every Lambda in the project needs some subset of: AWS config, S3, DynamoDB,
// EventBridge, SSM parameter fetch, and startup logging. This package
// extracts the common init patterns so each Lambda's init() is a short
// composition of helpers.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/forest-video-analyzer/internal/config"
	"github.com/fpang/forest-video-analyzer/internal/logging"
	"github.com/fpang/forest-video-analyzer/internal/notify"
	"github.com/fpang/forest-video-analyzer/internal/store"
)

const (
	// EnvKeyParam names the SSM parameter holding the TwelveLabs API key.
	EnvKeyParam = "SSM_TWELVELABS_KEY_PARAM"
	// DefaultKeyParam is used when EnvKeyParam is unset.
	DefaultKeyParam = "/forest-video-analyzer/prod/twelvelabs-api-key"
)

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// S3Clients holds the S3 client and presigner.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
}

// SSMAPI is the subset of the SSM client used to read parameters.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client and presigner.
func InitS3(cfg aws.Config) S3Clients {
	client := s3.NewFromConfig(cfg)
	return S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
	}
}

// InitDynamo creates the jobs store for the given table. Fatals if the
// table name is empty.
func InitDynamo(cfg aws.Config, tableName string) *store.DynamoStore {
	if tableName == "" {
		log.Fatal().Str("envVar", config.EnvJobsTable).Msg("DynamoDB table name is required")
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// InitNotifier returns an EventBridge notifier for busName, or a no-op
// notifier when busName is empty.
func InitNotifier(cfg aws.Config, busName string) notify.Notifier {
	if busName == "" {
		log.Debug().Str("envVar", config.EnvEventBus).Msg("Event bus not set — notifications disabled")
		return notify.Noop{}
	}
	return notify.NewEventBridge(eventbridge.NewFromConfig(cfg), busName)
}

// KeyParam returns the SSM parameter name of the TwelveLabs API key.
func KeyParam() string {
	return logging.EnvOrDefault(EnvKeyParam, DefaultKeyParam)
}

// LoadIndexerKey fetches the TwelveLabs API key from SSM Parameter Store
// when it is not already configured. Lookup failures are logged and leave
// cfg unchanged, so analysis runs in fallback mode.
func LoadIndexerKey(ctx context.Context, client SSMAPI, cfg config.Config, paramName string) config.Config {
	if cfg.Indexer.APIKey != "" {
		return cfg
	}
	if cfg.Indexer.IndexID == "" {
		log.Warn().Str("envVar", config.EnvIndexID).Msg("Index id not set — skipping API key lookup, analysis will use mock results")
		return cfg
	}

	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Warn().Err(err).Str("param", paramName).Msg("TwelveLabs API key not found in SSM — analysis will use mock results")
		return cfg
	}
	key := aws.ToString(result.Parameter.Value)
	if key == "" {
		log.Warn().Str("param", paramName).Msg("TwelveLabs API key parameter is empty")
		return cfg
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("TwelveLabs API key loaded from SSM")
	return cfg.WithAPIKey(key)
}

// LoadConfig reads configuration from the environment, resolves the API key
// through SSM and validates the result. Fatals on invalid configuration.
func LoadConfig(ssmClient SSMAPI) config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg = LoadIndexerKey(context.Background(), ssmClient, cfg, KeyParam())
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
