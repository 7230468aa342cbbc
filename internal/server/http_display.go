package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	cfg := s.AppConfig.Server

	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /health           - Health check")
	fmt.Println("  GET  /stats            - Server statistics")
	fmt.Println("  POST /api/v1/optimize  - Optimize a CV for a job description")
	fmt.Println("  POST /api/v1/analyze   - Extract company and keywords from a job description")

	if len(s.APIKeys) > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}

	if cfg.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", cfg.MaxRequestSize, float64(cfg.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
	}

	if cfg.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity)
	} else {
		fmt.Println("Rate limiting: DISABLED")
	}

	fmt.Printf("Pipeline run timeout: %s\n", s.AppConfig.Pipeline.RunTimeout)
	if s.AppConfig.Prompts.Watch {
		fmt.Println("Prompt hot reload: ENABLED")
	}
}
