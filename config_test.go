/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "tls pair", mutate: func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }},
		{name: "cert without key", mutate: func(c *Config) { c.tlsCert = "cert.pem" }, wantErr: true},
		{name: "key without cert", mutate: func(c *Config) { c.tlsKey = "key.pem" }, wantErr: true},
		{name: "port zero", mutate: func(c *Config) { c.port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.port = 65536 }, wantErr: true},
		{name: "zero cooldown", mutate: func(c *Config) { c.cooldown = 0 }, wantErr: true},
		{name: "retention shorter than cooldown", mutate: func(c *Config) { c.cooldownRetention = time.Second }, wantErr: true},
		{name: "empty data file", mutate: func(c *Config) { c.dataFile = "  " }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Scheme(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmd_Defaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, "wishes.json", cfg.dataFile)
	assert.Equal(t, 5*time.Second, cfg.cooldown)
	assert.Equal(t, 10*time.Minute, cfg.cooldownRetention)
	assert.Equal(t, "Lighthouse Wish Wall", cfg.cardTitle)
	assert.False(t, cfg.metrics)
	require.NoError(t, cfg.validate())
}

func TestNewCmd_Environment(t *testing.T) {
	t.Setenv("WISHWALL_PORT", "9090")
	t.Setenv("WISHWALL_COOLDOWN", "3s")
	t.Setenv("WISHWALL_DATA_FILE", "/var/lib/wishwall/wishes.json")
	t.Setenv("WISHWALL_METRICS", "true")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 3*time.Second, cfg.cooldown)
	assert.Equal(t, "/var/lib/wishwall/wishes.json", cfg.dataFile)
	assert.True(t, cfg.metrics)
}

func TestNewCmd_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("WISHWALL_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags([]string{"--port", "7070"}))
	assert.Equal(t, 7070, cfg.port)
}
