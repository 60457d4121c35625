package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Model is the WhisperX model to use (e.g., "large-v3").
	Model string
	// ComputeType selects the inference precision ("float32", "float16", "int8").
	ComputeType string
	// BatchSize controls how many audio chunks are transcribed per batch.
	BatchSize int
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
	// VADMethod selects the voice activity detection method ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token for pyannote VAD and gated models.
	HFToken string
	// ModelDir is the directory whisperx loads faster-whisper models from.
	ModelDir string
	// HubCacheDir overrides the Hugging Face hub cache location.
	HubCacheDir string
}

// WhisperX configuration constants.
const (
	DefaultModel       = "large-v3"
	DefaultComputeType = "float32"
	DefaultBatchSize   = 4
	CUDAIndexURL       = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL       = "https://pypi.org/simple"
	OutputFormat       = "all"
	CPUDevice          = "cpu"
	CUDADevice         = "cuda"
	VADMethodPyannote  = "pyannote"
	VADMethodSilero    = "silero"
)

// Command names for external tools.
const (
	UVXCommand = "uvx"
)
