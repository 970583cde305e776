package cmd

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigureLogging(t *testing.T) {
	defer func() {
		verbose, quiet, outputFormat = false, false, "table"
		logrus.SetLevel(logrus.InfoLevel)
	}()

	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		format  string
		level   logrus.Level
		wantErr bool
	}{
		{name: "default", format: "table", level: logrus.WarnLevel},
		{name: "verbose", verbose: true, format: "json", level: logrus.DebugLevel},
		{name: "quiet", quiet: true, format: "yaml", level: logrus.ErrorLevel},
		{name: "both", verbose: true, quiet: true, format: "table", wantErr: true},
		{name: "bad format", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verbose, quiet, outputFormat = tt.verbose, tt.quiet, tt.format
			err := configureLogging()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.level, logrus.GetLevel())
		})
	}
}

func TestNewTarget(t *testing.T) {
	defer func() { volumeOffset = -1 }()

	volumeOffset = -1
	target := newTarget("disk.img")
	assert.Equal(t, "disk.img", target.ImagePath)
	assert.False(t, target.HasOffset)

	volumeOffset = 1048576
	target = newTarget("disk.img")
	assert.True(t, target.HasOffset)
	assert.Equal(t, int64(1048576), target.Offset)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ls", "findpath", "orphans", "config"} {
		assert.True(t, names[want], want)
	}
}
