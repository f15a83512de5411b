package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidOutputName is returned for file or job names that would escape
// the output directory.
var ErrInvalidOutputName = errors.New("invalid output name")

// OutputManager keeps exported files under one directory per job
type OutputManager struct {
	BaseOutputDir string
}

func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{BaseOutputDir: baseOutputDir}
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidOutputName, name)
	}
	return nil
}

// CreateJobOutputDir creates the job's output directory
func (om *OutputManager) CreateJobOutputDir(jobID string) (string, error) {
	if err := checkName(jobID); err != nil {
		return "", err
	}
	jobDir := filepath.Join(om.BaseOutputDir, jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create job output directory: %w", err)
	}
	return jobDir, nil
}

// GetOutputFilePath returns the path of fileName inside the job's directory,
// creating the directory if needed
func (om *OutputManager) GetOutputFilePath(jobID, fileName string) (string, error) {
	if err := checkName(fileName); err != nil {
		return "", err
	}
	jobDir, err := om.CreateJobOutputDir(jobID)
	if err != nil {
		return "", err
	}
	return filepath.Join(jobDir, fileName), nil
}

// OpenOutputFile opens a previously exported file for download
func (om *OutputManager) OpenOutputFile(jobID, fileName string) (*os.File, error) {
	if err := checkName(jobID); err != nil {
		return nil, err
	}
	if err := checkName(fileName); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(om.BaseOutputDir, jobID, fileName))
}

func (om *OutputManager) GetDownloadURL(jobID, fileName string) string {
	return fmt.Sprintf("/api/v1/download/%s/%s", jobID, filepath.Base(fileName))
}

// ContentType maps an exported file to its MIME type
func (om *OutputManager) ContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".json":
		return "application/json"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}
