package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quizclash-service/internal/app"
	"quizclash-service/internal/domain"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Game GameConfig `yaml:"game"`
	Log  struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// GameConfig bounds game creation and drives eviction. Zero values fall back to defaults.
type GameConfig struct {
	MinTimePerQuestion int    `yaml:"minTimePerQuestion"`
	MaxTimePerQuestion int    `yaml:"maxTimePerQuestion"`
	MinQuestions       int    `yaml:"minQuestions"`
	MaxQuestions       int    `yaml:"maxQuestions"`
	MaxPlayersPerGame  int    `yaml:"maxPlayersPerGame"`
	MaxSessions        int    `yaml:"maxSessions"`
	IdleTimeout        string `yaml:"idleTimeout"`
	SweepInterval      string `yaml:"sweepInterval"`
	GenerationTimeout  string `yaml:"generationTimeout"`
	MinPoints          int    `yaml:"minPoints"`
	MaxPoints          int    `yaml:"maxPoints"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DurationOr parses a duration string or returns the fallback if empty or malformed.
func DurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// GameSettings converts the game section to validated controller settings.
func (c Config) GameSettings() (app.Settings, error) {
	s := app.DefaultSettings()
	g := c.Game
	intOr(&s.MinTimePerQuestion, g.MinTimePerQuestion)
	intOr(&s.MaxTimePerQuestion, g.MaxTimePerQuestion)
	intOr(&s.MinQuestions, g.MinQuestions)
	intOr(&s.MaxQuestions, g.MaxQuestions)
	intOr(&s.MaxPlayersPerGame, g.MaxPlayersPerGame)
	intOr(&s.MaxSessions, g.MaxSessions)
	s.IdleTimeout = DurationOr(g.IdleTimeout, s.IdleTimeout)
	s.SweepInterval = DurationOr(g.SweepInterval, s.SweepInterval)
	s.GenerationTimeout = DurationOr(g.GenerationTimeout, s.GenerationTimeout)
	if g.MinPoints != 0 || g.MaxPoints != 0 {
		s.ScoreBand = domain.ScoreBand{Min: g.MinPoints, Max: g.MaxPoints}
	}
	return s, s.Validate()
}

func intOr(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
