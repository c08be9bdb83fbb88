// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions called by command definitions
// in the commands package. Handlers are framework-agnostic and can be
// tested independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/fabriclab/fabtest/internal/config"
	s3platform "github.com/fabriclab/fabtest/internal/platform/s3"
	platformssh "github.com/fabriclab/fabtest/internal/platform/ssh"
	"github.com/fabriclab/fabtest/internal/probe"
	"github.com/fabriclab/fabtest/internal/remote"
	"github.com/fabriclab/fabtest/internal/report"
	"github.com/fabriclab/fabtest/internal/sweep"
	"github.com/fabriclab/fabtest/internal/workload"
)

const defaultConfigFile = "fabtest.yaml"

// Exit codes by failure class.
const (
	ExitOK                = 0
	ExitSetupFailure      = 1
	ExitVerifyMismatch    = 2
	ExitWorkloadFailure   = 3
	ExitCleanupIncomplete = 4
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var mismatch *probe.Mismatch
	if errors.As(err, &mismatch) {
		return ExitVerifyMismatch
	}
	var failure *workload.Failure
	if errors.As(err, &failure) {
		return ExitWorkloadFailure
	}
	var incomplete *sweep.Incomplete
	if errors.As(err, &incomplete) {
		return ExitCleanupIncomplete
	}
	return ExitSetupFailure
}

// archiveStore is the object-store surface the artifact upload needs.
type archiveStore interface {
	report.ObjectPutter
	EnsureBucket(ctx context.Context, bucket string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from file.
	loadConfigFile = config.LoadFile

	// newExecutor builds the remote executor for the configured hosts.
	newExecutor = buildSSHExecutor

	// newArchiveStore creates the S3 client for artifact upload.
	newArchiveStore = func(s3cfg config.S3) (archiveStore, error) {
		return s3platform.NewClient(s3cfg.Endpoint, s3cfg.Region, s3cfg.AccessKey, s3cfg.SecretKey)
	}

	// readFile reads a file (for testing injection).
	readFile = os.ReadFile

	// runWizard runs the interactive configuration wizard.
	runWizard = config.RunWizard
)

// session bundles everything a handler needs for one invocation.
type session struct {
	cfg      *config.Config
	run      *report.TestRun
	exec     remote.Executor
	timeouts *config.Timeouts
	log      logr.Logger

	// results collects workload output for the artifact writer.
	results []workload.Result
}

// newSession loads configuration, builds the recorded executor, and
// starts the run record. scenario is used when the config names none.
func newSession(configPath, scenario string) (*session, error) {
	if configPath == "" {
		configPath = defaultConfigFile
	}
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'fabtest init' to create one", err)
	}
	if cfg.Scenario != "" {
		scenario = cfg.Scenario
	}

	exec, err := newExecutor(cfg)
	if err != nil {
		return nil, err
	}

	run := report.NewTestRun(scenario)
	return &session{
		cfg:      cfg,
		run:      run,
		exec:     remote.NewRecorder(exec, run),
		timeouts: config.LoadTimeouts(),
		log:      newLogger(),
	}, nil
}

// buildSSHExecutor registers both lab hosts under their role names.
func buildSSHExecutor(cfg *config.Config) (remote.Executor, error) {
	exec := remote.NewSSHExecutor()
	hosts := map[string]config.Host{
		config.RoleTarget:    cfg.Target,
		config.RoleInitiator: cfg.Initiator,
	}
	for role, host := range hosts {
		key, err := readFile(expandHome(host.KeyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read key for %s: %w", role, err)
		}
		client, err := platformssh.NewClient(&platformssh.Config{
			Host:       host.Address,
			Port:       host.Port,
			User:       host.User,
			PrivateKey: key,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure SSH for %s: %w", role, err)
		}
		exec.AddHost(role, client)
	}
	return exec, nil
}

// expandHome resolves a leading ~ in a key file path.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// newLogger renders structured log lines to stderr.
func newLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{})
}

// writeArtifacts finalizes the run and writes its artifact directory:
// report.yaml, commands.yaml, per-job workload output, and host log
// tails. When S3 upload is configured the directory is archived too.
// Returns the directory path.
func (s *session) writeArtifacts(ctx context.Context, results []workload.Result, tails map[string]string) (string, error) {
	s.run.Finalize()

	dir := report.RunDir(s.cfg.Artifacts.Dir, s.run.Scenario)
	if err := s.run.Write(dir); err != nil {
		return "", err
	}
	for _, result := range results {
		if err := report.WriteJobResult(dir, result.Job, result.Raw); err != nil {
			return dir, err
		}
	}
	for host, content := range tails {
		if err := report.WriteHostLog(dir, host, content); err != nil {
			return dir, err
		}
	}

	if s.cfg.Artifacts.S3.Enabled {
		if err := s.archive(ctx, dir); err != nil {
			s.run.AddWarning(fmt.Sprintf("artifact upload failed: %v", err))
			s.log.Info("artifact upload failed", "error", err.Error())
		}
	}
	return dir, nil
}

// archive uploads the run directory to the configured bucket and reads
// the listing back so a dropped upload surfaces now, not when someone
// needs the artifacts.
func (s *session) archive(ctx context.Context, dir string) error {
	s3cfg := s.cfg.Artifacts.S3
	store, err := newArchiveStore(s3cfg)
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx, s3cfg.Bucket); err != nil {
		return err
	}
	uploaded, err := report.ArchiveDir(ctx, store, s3cfg.Bucket, dir)
	if err != nil {
		return err
	}

	keys, err := store.ListObjects(ctx, s3cfg.Bucket, filepath.Base(dir)+"/")
	if err != nil {
		return fmt.Errorf("failed to list archived objects: %w", err)
	}
	if len(keys) < uploaded {
		return fmt.Errorf("archive incomplete: listed %d of %d uploaded objects", len(keys), uploaded)
	}
	s.log.Info("artifacts archived", "bucket", s3cfg.Bucket, "objects", uploaded)
	return nil
}
