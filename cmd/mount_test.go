// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbender/sqlfs-go/cfg"
)

func TestGenerateRandomPasswordLengthAndAlphabet(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		password, err := generateRandomPassword()
		require.NoError(t, err)
		assert.Len(t, password, randomPasswordLength)
		for _, r := range password {
			assert.Contains(t, randomPasswordAlphabet, string(r))
		}
		assert.False(t, seen[password], "generateRandomPassword produced a repeat: %q", password)
		seen[password] = true
	}
}

func TestGetFuseMountConfigBasics(t *testing.T) {
	config := &cfg.Config{
		FileSystem: cfg.FileSystemConfig{
			FuseOptions: []string{"allow_other,max_read=4096"},
		},
		Logging: cfg.LoggingConfig{Severity: cfg.InfoLogSeverity},
	}

	mountCfg := getFuseMountConfig(config)
	require.NotNil(t, mountCfg)
	assert.Equal(t, fsName, mountCfg.FSName)
	assert.Equal(t, fsName, mountCfg.Subtype)
	assert.Equal(t, fsName, mountCfg.VolumeName)
	assert.Equal(t, "", mountCfg.Options["allow_other"])
	assert.Equal(t, "4096", mountCfg.Options["max_read"])
}

func TestGetFuseMountConfigLoggerWiring(t *testing.T) {
	cases := []struct {
		severity  cfg.LogSeverity
		wantError bool
		wantDebug bool
	}{
		{cfg.TraceLogSeverity, true, true},
		{cfg.DebugLogSeverity, true, true},
		{cfg.InfoLogSeverity, true, false},
		{cfg.WarningLogSeverity, true, false},
		{cfg.ErrorLogSeverity, true, false},
		{cfg.OffLogSeverity, false, false},
	}
	for _, c := range cases {
		config := &cfg.Config{Logging: cfg.LoggingConfig{Severity: c.severity}}
		mountCfg := getFuseMountConfig(config)
		if c.wantError {
			assert.NotNil(t, mountCfg.ErrorLogger, "severity %s", c.severity)
		} else {
			assert.Nil(t, mountCfg.ErrorLogger, "severity %s", c.severity)
		}
		if c.wantDebug {
			assert.NotNil(t, mountCfg.DebugLogger, "severity %s", c.severity)
		} else {
			assert.Nil(t, mountCfg.DebugLogger, "severity %s", c.severity)
		}
	}
}
