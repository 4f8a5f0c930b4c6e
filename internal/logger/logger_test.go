// Copyright 2025 Google LLC
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

package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/googlecloudplatform/volexec/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	textTraceString   = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=TRACE message=\"TestLogs: www.traceExample.com\""
	textDebugString   = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=DEBUG message=\"TestLogs: www.debugExample.com\""
	textInfoString    = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=INFO message=\"TestLogs: www.infoExample.com\""
	textWarningString = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=WARNING message=\"TestLogs: www.warningExample.com\""
	textErrorString   = "^time=\"[a-zA-Z0-9/:. ]{26}\" severity=ERROR message=\"TestLogs: www.errorExample.com\""

	jsonTraceString   = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"TRACE\",\"message\":\"TestLogs: www.traceExample.com\"}"
	jsonDebugString   = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"DEBUG\",\"message\":\"TestLogs: www.debugExample.com\"}"
	jsonInfoString    = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"INFO\",\"message\":\"TestLogs: www.infoExample.com\"}"
	jsonWarningString = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"WARNING\",\"message\":\"TestLogs: www.warningExample.com\"}"
	jsonErrorString   = "^{\"timestamp\":{\"seconds\":\\d{10},\"nanos\":\\d{0,9}},\"severity\":\"ERROR\",\"message\":\"TestLogs: www.errorExample.com\"}"
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func (t *LoggerTest) TearDownTest() {
	Close()
	defaultLoggerFactory = &loggerFactory{
		format:          cfg.TextLogFormat,
		level:           cfg.INFO,
		logRotateConfig: DefaultLogRotateConfig(),
	}
	defaultLogger = defaultLoggerFactory.newLogger(cfg.INFO)
}

// //////////////////////////////////////////////////////////////////////
// Boilerplate
// //////////////////////////////////////////////////////////////////////

func redirectLogsToGivenBuffer(buf *bytes.Buffer, level string) {
	var programLevel = new(slog.LevelVar)
	defaultLogger = slog.New(
		defaultLoggerFactory.createJsonOrTextHandler(buf, programLevel, "TestLogs: "),
	)
	setLoggingLevel(level, programLevel)
}

// fetchLogOutputForSpecifiedSeverityLevel takes configured severity and
// functions that write logs as parameter and returns string array containing
// output from each function call.
func fetchLogOutputForSpecifiedSeverityLevel(level string, functions []func()) []string {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, level)

	var output []string
	for _, f := range functions {
		f()
		output = append(output, buf.String())
		buf.Reset()
	}
	return output
}

func getTestLoggingFunctions() []func() {
	return []func(){
		func() {
			Tracef("www.traceExample.com")
		},
		func() {
			Debugf("www.debugExample.com")
		},
		func() {
			Infof("www.infoExample.com")
		},
		func() {
			Warnf("www.warningExample.com")
		},
		func() {
			Errorf("www.errorExample.com")
		},
	}
}

func validateOutput(t *testing.T, expected []string, output []string) {
	require.Len(t, output, len(expected))
	for i := range output {
		if expected[i] == "" {
			assert.Equal(t, expected[i], output[i])
		} else {
			expectedRegexp := regexp.MustCompile(expected[i])
			assert.True(t, expectedRegexp.MatchString(output[i]), "output %q does not match %q", output[i], expected[i])
		}
	}
}

func validateLogOutputAtSpecifiedFormatAndSeverity(t *testing.T, format string, level string, expectedOutput []string) {
	defaultLoggerFactory.format = format

	output := fetchLogOutputForSpecifiedSeverityLevel(level, getTestLoggingFunctions())

	validateOutput(t, expectedOutput, output)
}

// //////////////////////////////////////////////////////////////////////
// Tests
// //////////////////////////////////////////////////////////////////////

func (t *LoggerTest) TestTextFormatLogs() {
	testData := []struct {
		level    string
		expected []string
	}{
		{cfg.OFF, []string{"", "", "", "", ""}},
		{cfg.ERROR, []string{"", "", "", "", textErrorString}},
		{cfg.WARNING, []string{"", "", "", textWarningString, textErrorString}},
		{cfg.INFO, []string{"", "", textInfoString, textWarningString, textErrorString}},
		{cfg.DEBUG, []string{"", textDebugString, textInfoString, textWarningString, textErrorString}},
		{cfg.TRACE, []string{textTraceString, textDebugString, textInfoString, textWarningString, textErrorString}},
	}

	for _, test := range testData {
		t.Run(test.level, func() {
			validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), cfg.TextLogFormat, test.level, test.expected)
		})
	}
}

func (t *LoggerTest) TestJSONFormatLogs() {
	testData := []struct {
		level    string
		expected []string
	}{
		{cfg.OFF, []string{"", "", "", "", ""}},
		{cfg.ERROR, []string{"", "", "", "", jsonErrorString}},
		{cfg.WARNING, []string{"", "", "", jsonWarningString, jsonErrorString}},
		{cfg.INFO, []string{"", "", jsonInfoString, jsonWarningString, jsonErrorString}},
		{cfg.DEBUG, []string{"", jsonDebugString, jsonInfoString, jsonWarningString, jsonErrorString}},
		{cfg.TRACE, []string{jsonTraceString, jsonDebugString, jsonInfoString, jsonWarningString, jsonErrorString}},
	}

	for _, test := range testData {
		t.Run(test.level, func() {
			validateLogOutputAtSpecifiedFormatAndSeverity(t.T(), cfg.JSONLogFormat, test.level, test.expected)
		})
	}
}

func (t *LoggerTest) TestSetLoggingLevel() {
	testData := []struct {
		inputLevel           string
		expectedProgramLevel slog.Level
	}{
		{cfg.TRACE, LevelTrace},
		{cfg.DEBUG, LevelDebug},
		{cfg.INFO, LevelInfo},
		{cfg.WARNING, LevelWarn},
		{cfg.ERROR, LevelError},
		{cfg.OFF, LevelOff},
	}

	for _, test := range testData {
		programLevel := new(slog.LevelVar)
		setLoggingLevel(test.inputLevel, programLevel)
		assert.Equal(t.T(), test.expectedProgramLevel, programLevel.Level())
	}
}

func (t *LoggerTest) TestInitLogFile() {
	filePath := filepath.Join(t.T().TempDir(), "log.txt")
	newLogConfig := cfg.LoggingConfig{
		FilePath: cfg.ResolvedPath(filePath),
		Severity: cfg.DebugLogSeverity,
		Format:   cfg.TextLogFormat,
		LogRotate: cfg.LogRotateLoggingConfig{
			MaxFileSizeMb:   100,
			BackupFileCount: 2,
			Compress:        true,
		},
	}

	err := InitLogFile(newLogConfig)

	require.NoError(t.T(), err)
	assert.Equal(t.T(), filePath, defaultLoggerFactory.file.Name())
	assert.NotNil(t.T(), defaultLoggerFactory.writer)
	assert.Equal(t.T(), cfg.TextLogFormat, defaultLoggerFactory.format)
	assert.Equal(t.T(), cfg.DEBUG, defaultLoggerFactory.level)
	assert.Equal(t.T(), int64(100), defaultLoggerFactory.logRotateConfig.MaxFileSizeMb)
	assert.Equal(t.T(), int64(2), defaultLoggerFactory.logRotateConfig.BackupFileCount)
	assert.True(t.T(), defaultLoggerFactory.logRotateConfig.Compress)
}

func (t *LoggerTest) TestInitLogFile_WritesThroughRotatingWriter() {
	filePath := filepath.Join(t.T().TempDir(), "volexec.log")
	err := InitLogFile(cfg.LoggingConfig{
		FilePath:  cfg.ResolvedPath(filePath),
		Severity:  cfg.InfoLogSeverity,
		Format:    cfg.JSONLogFormat,
		LogRotate: DefaultLogRotateConfig(),
	})
	require.NoError(t.T(), err)

	Debugf("hidden")
	Infof("visible %d", 42)
	Close()

	content, err := os.ReadFile(filePath)
	require.NoError(t.T(), err)
	assert.Contains(t.T(), string(content), `"message":"visible 42"`)
	assert.NotContains(t.T(), string(content), "hidden")
	assert.Equal(t.T(), 1, strings.Count(string(content), "\n"))
}

func (t *LoggerTest) TestInitLogFile_BadPath() {
	err := InitLogFile(cfg.LoggingConfig{
		FilePath: cfg.ResolvedPath(filepath.Join(t.T().TempDir(), "missing", "dir", "volexec.log")),
		Severity: cfg.InfoLogSeverity,
		Format:   cfg.TextLogFormat,
	})

	assert.ErrorContains(t.T(), err, "open log file")
}

func (t *LoggerTest) TestSetLogFormat() {
	testData := []struct {
		format         string
		expectedOutput string
	}{
		{cfg.TextLogFormat, textInfoString},
		{cfg.JSONLogFormat, jsonInfoString},
		{"", jsonInfoString},
	}

	for _, test := range testData {
		SetLogFormat(test.format)

		assert.NotNil(t.T(), defaultLogger)
		assert.Equal(t.T(), test.format, defaultLoggerFactory.format)
		var buf bytes.Buffer
		redirectLogsToGivenBuffer(&buf, defaultLoggerFactory.level)
		Infof("www.infoExample.com")
		expectedRegexp := regexp.MustCompile(test.expectedOutput)
		assert.True(t.T(), expectedRegexp.MatchString(buf.String()))
	}
}
