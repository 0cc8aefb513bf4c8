package config

const (
	defaultClientTarget = "http://localhost:8080"

	defaultMaxLength = 20
	defaultChunkSize = 4096
	defaultEndMarker = "\n[End of Stream]"

	defaultNumResults = 5

	defaultServerListen = ":8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
		Stream: StreamConfig{
			MaxLength: defaultMaxLength,
			ChunkSize: defaultChunkSize,
			EndMarker: defaultEndMarker,
		},
		Similar: SimilarConfig{
			NumResults: defaultNumResults,
		},
		Server: ServerConfig{
			Listen: defaultServerListen,
		},
	}
}
