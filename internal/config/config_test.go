package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "clantracker", cfg.App.Name)
	require.Equal(t, time.Minute, cfg.Poller.ClanInterval)
	require.Equal(t, 5*time.Minute, cfg.Poller.PlayerInterval)
	require.Equal(t, 5*time.Minute, cfg.Interpolation.Step)
	require.Equal(t, 7*24*time.Hour, cfg.Interpolation.Window)
	require.Equal(t, 30*24*time.Hour, cfg.Retention.Window)
	require.EqualValues(t, 1000, cfg.Retention.MinRecentCount)
	require.Equal(t, "@daily", cfg.Retention.Schedule)
	require.Equal(t, "@hourly", cfg.Interpolation.Schedule)
	require.Equal(t, 4000, cfg.Server.Port)
	require.Equal(t, 7, cfg.Derive.TrendWindow)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Interpolation.Step = 0
	require.Error(t, cfg.Validate())

	cfg, err = Load("")
	require.NoError(t, err)
	cfg.Retention.Window = time.Hour
	cfg.Retention.RecentWindow = 2 * time.Hour
	require.Error(t, cfg.Validate())

	cfg, err = Load("")
	require.NoError(t, err)
	cfg.Server.Port = -1
	require.Error(t, cfg.Validate())
}
