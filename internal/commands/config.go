package commands

// EmbeddingConfig contains common flag definitions for embedding configuration
type EmbeddingConfig struct {
	// Provider is the embedding backend to use
	Provider string `help:"Embedding backend to use" default:"random" enum:"random,clap-server" env:"EMBEDDING_PROVIDER"`
	// RandomDimensions is the vector size for the placeholder random backend
	RandomDimensions int `help:"Vector size for the random placeholder backend" default:"512" env:"RANDOM_DIMENSIONS"`
	// ClapServerURL is the base URL of a CLAP embedding server
	ClapServerURL string `help:"Base URL of the CLAP embedding server" default:"http://localhost:8080" env:"CLAP_SERVER_URL"`
	// ClapServerModel is the model name reported by the CLAP server
	ClapServerModel string `help:"Model name served by the CLAP embedding server" default:"laion/clap-htsat-fused" env:"CLAP_SERVER_MODEL"`
}

// CommonConfig contains configuration common to all commands
type CommonConfig struct {
	// DataDir is the path to the data directory
	DataDir string `help:"Path to data directory" default:"./data"`
	// LogLevel is the logging level to use
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error"`
}
