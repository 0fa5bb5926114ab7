package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primary-workspace/pulseai-hackshodh/internal/config"
)

func TestReportCmd_Metadata(t *testing.T) {
	assert.Equal(t, "report", reportCmd.Use)
	assert.NotEmpty(t, reportCmd.Short)

	userFlag := reportCmd.Flags().Lookup("user")
	require.NotNil(t, userFlag)
}

func TestReportCmd_MissingNotionToken(t *testing.T) {
	cfg = &config.Config{
		Notion: config.NotionConfig{
			Token:    "",
			ReportDB: "some-db-id",
		},
	}

	err := reportCmd.RunE(reportCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion token is required")
}

func TestReportCmd_MissingReportDB(t *testing.T) {
	cfg = &config.Config{
		Notion: config.NotionConfig{
			Token:    "fake-token",
			ReportDB: "",
		},
	}

	err := reportCmd.RunE(reportCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion report DB ID is required")
}
