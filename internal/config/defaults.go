package config

const (
	defaultStagingDir           = "~/.local/share/scribe/staging"
	defaultResultsDir           = "~/.local/share/scribe/results"
	defaultLogDir               = "~/.local/share/scribe/logs"
	defaultModelCacheDir        = "~/.cache/scribe/models"
	defaultModel                = "large-v3"
	defaultComputeType          = "float32"
	defaultBatchSize            = 4
	defaultVADMethod            = "silero"
	defaultModelDownloadTimeout = 1800
	defaultResultsPrefix        = "transcripts/"
	defaultAWSRegion            = "us-east-1"
	defaultAPIBind              = "127.0.0.1:7587"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			ResultsDir: defaultResultsDir,
			LogDir:     defaultLogDir,
		},
		Transcription: Transcription{
			Model:       defaultModel,
			ComputeType: defaultComputeType,
			BatchSize:   defaultBatchSize,
			VADMethod:   defaultVADMethod,
			Align:       true,
		},
		ModelCache: ModelCache{
			Dir:             defaultModelCacheDir,
			DownloadTimeout: defaultModelDownloadTimeout,
		},
		Storage: Storage{
			Region:        defaultAWSRegion,
			ResultsPrefix: defaultResultsPrefix,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			JobQueued:      true,
			JobCompleted:   true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
