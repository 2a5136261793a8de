package config

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:            "8080",
			BaseURL:         "http://localhost:8080",
			TokenTTLMinutes: 60,
		},
		Storage: Storage{
			Endpoint: "http://localhost:3900",
			Region:   "eu-central-1",
		},
		Logging: Logging{
			Format: "text",
			Level:  "info",
		},
		Intake: Intake{
			TickMillis:   500,
			Step:         10,
			ResultURL:    "https://example.com/sample-processed-video.mp4",
			ResultPoster: "https://images.unsplash.com/photo-1536240478700-b869070f9279?ixlib=rb-4.0.3",
		},
	}
}
