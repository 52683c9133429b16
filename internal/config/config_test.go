package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTP.Addr != ":3000" {
		t.Fatalf("expected :3000, got %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.TokenTTL != 600*time.Second {
		t.Fatalf("expected 600s token ttl, got %s", cfg.Auth.TokenTTL)
	}
	if cfg.RabbitMQ.Exchange != "customer_exchange" || cfg.RabbitMQ.Queue != "customer_queue" || cfg.RabbitMQ.RoutingKey != "create_customer" {
		t.Fatalf("unexpected rabbitmq topology: %+v", cfg.RabbitMQ)
	}
	if cfg.Store.Driver != StoreMongo {
		t.Fatalf("expected mongo store by default, got %q", cfg.Store.Driver)
	}
	if !cfg.RabbitMQ.RequeueInvalid {
		t.Fatalf("expected requeue_invalid to default to true")
	}
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MONGODB_URI", "mongodb://db:27017")
	t.Setenv("REQUIRED_SCOPES", "customers:read,customers:admin")
	t.Setenv("HRCUT_AUTH_TOKEN_TTL", "5m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("expected secret from JWT_SECRET, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" {
		t.Fatalf("expected uri from MONGODB_URI, got %q", cfg.Mongo.URI)
	}
	if len(cfg.Auth.RequiredScopes) != 2 || cfg.Auth.RequiredScopes[1] != "customers:admin" {
		t.Fatalf("expected two required scopes, got %v", cfg.Auth.RequiredScopes)
	}
	if cfg.Auth.TokenTTL != 5*time.Minute {
		t.Fatalf("expected 5m ttl, got %s", cfg.Auth.TokenTTL)
	}
}

func TestLoadMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("store:\n  driver: memory\nauth:\n  jwt_secret: from-file\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != StoreMemory || cfg.Auth.JWTSecret != "from-file" {
		t.Fatalf("file values not merged: %+v", cfg.Store)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoadMissingFileIsOptional(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid local", mutate: func(*Config) {}},
		{name: "local without secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "remote without url", mutate: func(c *Config) { c.Auth.Mode = AuthModeRemote }, wantErr: true},
		{name: "remote with url", mutate: func(c *Config) { c.Auth.Mode = AuthModeRemote; c.Auth.RemoteURL = "http://auth:3001" }},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Driver = "cassandra" }, wantErr: true},
		{name: "mysql without dsn", mutate: func(c *Config) { c.Store.Driver = StoreMySQL }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Auth.TokenTTL = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnforceScopesFollowsAuthMode(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{name: "local default", want: true},
		{name: "remote default", env: map[string]string{"HRCUT_AUTH_MODE": "remote"}, want: false},
		{name: "remote explicit", env: map[string]string{"HRCUT_AUTH_MODE": "remote", "HRCUT_AUTH_ENFORCE_SCOPES": "true"}, want: true},
		{name: "local explicit off", env: map[string]string{"HRCUT_AUTH_ENFORCE_SCOPES": "false"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if cfg.Auth.EnforceScopes != tt.want {
				t.Fatalf("enforce_scopes = %v, want %v", cfg.Auth.EnforceScopes, tt.want)
			}
		})
	}
}

func TestEnforceScopesFromFileInRemoteMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("auth:\n  mode: remote\n  remote_url: http://auth:3001\n  enforce_scopes: true\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Auth.EnforceScopes {
		t.Fatal("explicit enforce_scopes from file was overridden")
	}
}
