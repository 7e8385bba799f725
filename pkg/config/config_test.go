package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalAPIServerYAML = `
database:
  user: bounty
  database: bounty_api
escrow:
  rpc_url: http://localhost:8545
  chain_id: 31337
  contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
  tokens:
    USDC:
      address: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
      decimals: 6
    USDT:
      address: "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
      decimals: 6
    DAI:
      address: "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"
      decimals: 18
auth:
  jwt_secret: test-secret
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAPIServer_Defaults(t *testing.T) {
	cfg, err := LoadAPIServer(writeConfig(t, minimalAPIServerYAML))
	if err != nil {
		t.Fatalf("LoadAPIServer() failed: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected server defaults: %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout.Std() != 30*time.Second {
		t.Errorf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout.Std())
	}
	if cfg.Database.Port != 5432 || cfg.Database.SSLMode != "disable" {
		t.Errorf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Auth.TokenTTL.Std() != 24*time.Hour {
		t.Errorf("unexpected token TTL: %s", cfg.Auth.TokenTTL.Std())
	}
	if cfg.Escrow.CallTimeout.Std() != 90*time.Second {
		t.Errorf("unexpected escrow call timeout: %s", cfg.Escrow.CallTimeout.Std())
	}
	if got := cfg.Escrow.Tokens["DAI"].Decimals; got != 18 {
		t.Errorf("unexpected DAI decimals: %d", got)
	}
}

func TestLoadAPIServer_DurationParsing(t *testing.T) {
	yaml := minimalAPIServerYAML + `
server:
  port: 9000
  read_timeout: 5s
  shutdown_timeout: 1m
`
	cfg, err := LoadAPIServer(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("LoadAPIServer() failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("unexpected port: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout.Std() != 5*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout.Std())
	}
	if cfg.Server.ShutdownTimeout.Std() != time.Minute {
		t.Errorf("unexpected shutdown timeout: %s", cfg.Server.ShutdownTimeout.Std())
	}
}

func TestLoadAPIServer_EnvOverride(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_from_env")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := LoadAPIServer(writeConfig(t, minimalAPIServerYAML))
	if err != nil {
		t.Fatalf("LoadAPIServer() failed: %v", err)
	}
	if cfg.GitHub.Token != "ghp_from_env" {
		t.Errorf("github token not overridden: %q", cfg.GitHub.Token)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("jwt secret not overridden: %q", cfg.Auth.JWTSecret)
	}
}

func TestLoadAPIServer_MissingRequired(t *testing.T) {
	yaml := `
database:
  user: bounty
  database: bounty_api
auth:
  jwt_secret: s
`
	if _, err := LoadAPIServer(writeConfig(t, yaml)); err == nil {
		t.Fatal("expected validation error for missing escrow settings")
	}
}

func TestLoadRelayer_RequiresRelayerKey(t *testing.T) {
	yaml := minimalAPIServerYAML + `
sweep:
  interval: 30s
`
	if _, err := LoadRelayer(writeConfig(t, yaml)); err == nil {
		t.Fatal("expected error for missing relayer private key")
	}

	t.Setenv("RELAYER_PRIVATE_KEY", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	cfg, err := LoadRelayer(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("LoadRelayer() failed: %v", err)
	}
	if cfg.Sweep.Interval.Std() != 30*time.Second {
		t.Errorf("unexpected sweep interval: %s", cfg.Sweep.Interval.Std())
	}
	if cfg.Sweep.ItemDelay.Std() != 2*time.Second {
		t.Errorf("unexpected item delay default: %s", cfg.Sweep.ItemDelay.Std())
	}
	if cfg.Sweep.MaxVerifyAttempts != 5 {
		t.Errorf("unexpected max verify attempts default: %d", cfg.Sweep.MaxVerifyAttempts)
	}
}
