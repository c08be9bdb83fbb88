package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlReport is the top-level structure serialized to report.yaml. It
// mirrors what consumers of a run want first: the verdict, then the
// stage history, then cleanup status.
type yamlReport struct {
	Scenario  string            `yaml:"scenario"`
	Generated string            `yaml:"generated"`
	Started   string            `yaml:"started"`
	Finished  string            `yaml:"finished,omitempty"`
	Outcome   Outcome           `yaml:"outcome"`
	Stages    []yamlStageRecord `yaml:"stages,omitempty"`
	Cleanup   yamlCleanup       `yaml:"cleanup"`
	Commands  int               `yaml:"commands_executed"`
	Warnings  []string          `yaml:"warnings,omitempty"`
}

type yamlStageRecord struct {
	Name    string      `yaml:"name"`
	Status  StageStatus `yaml:"status"`
	Error   string      `yaml:"error,omitempty"`
	Elapsed string      `yaml:"elapsed"`
}

type yamlCleanup struct {
	Complete bool `yaml:"complete"`
	Removed  int  `yaml:"removed"`
}

// yamlCommand records one executed command in commands.yaml.
type yamlCommand struct {
	Host     string `yaml:"host"`
	Command  string `yaml:"command"`
	ExitCode int    `yaml:"exit_code"`
	Elapsed  string `yaml:"elapsed"`
	Stdout   string `yaml:"stdout,omitempty"`
	Stderr   string `yaml:"stderr,omitempty"`
}

// RunDir returns a fresh timestamped directory path for a run's
// artifacts beneath the configured parent.
func RunDir(parent, scenario string) string {
	stamp := time.Now().Format("20060102-150405")
	return filepath.Join(parent, fmt.Sprintf("%s-%s", stamp, scenario))
}

// Write serializes the run into dir: report.yaml with the verdict and
// stage history, commands.yaml with the full command log.
func (r *TestRun) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := r.writeReport(filepath.Join(dir, "report.yaml")); err != nil {
		return err
	}
	return r.writeCommands(filepath.Join(dir, "commands.yaml"))
}

func (r *TestRun) writeReport(path string) error {
	r.mu.Lock()
	out := yamlReport{
		Scenario:  r.Scenario,
		Generated: time.Now().Format(time.RFC3339),
		Started:   r.StartedAt.Format(time.RFC3339),
		Outcome:   r.Outcome,
		Cleanup:   yamlCleanup{Complete: r.CleanupComplete, Removed: r.CleanupRemoved},
		Commands:  len(r.Results),
		Warnings:  r.Warnings,
	}
	if !r.FinishedAt.IsZero() {
		out.Finished = r.FinishedAt.Format(time.RFC3339)
	}
	for _, s := range r.Stages {
		out.Stages = append(out.Stages, yamlStageRecord{
			Name:    s.Name,
			Status:  s.Status,
			Error:   s.Error,
			Elapsed: s.Elapsed.Round(time.Millisecond).String(),
		})
	}
	r.mu.Unlock()

	return writeYAMLFile(path, &out)
}

func (r *TestRun) writeCommands(path string) error {
	r.mu.Lock()
	commands := make([]yamlCommand, 0, len(r.Results))
	for _, res := range r.Results {
		commands = append(commands, yamlCommand{
			Host:     res.Host,
			Command:  res.Command,
			ExitCode: res.ExitCode,
			Elapsed:  res.Elapsed.Round(time.Millisecond).String(),
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		})
	}
	r.mu.Unlock()

	return writeYAMLFile(path, commands)
}

// WriteJobResult stores the raw JSON output of one workload job as
// workload-<name>.json inside the run directory.
func WriteJobResult(dir, name string, raw []byte) error {
	path := filepath.Join(dir, fmt.Sprintf("workload-%s.json", name))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write workload result: %w", err)
	}
	return nil
}

// WriteHostLog stores a host's kernel log tail as dmesg-<host>.log
// inside the run directory.
func WriteHostLog(dir, host, content string) error {
	path := filepath.Join(dir, fmt.Sprintf("dmesg-%s.log", host))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write host log: %w", err)
	}
	return nil
}

func writeYAMLFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if err := encodeYAML(f, v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// encodeYAML serializes v with two-space indentation through a
// buffered writer.
func encodeYAML(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		_ = enc.Close()
		return err
	}
	_ = enc.Close()
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(buf.Bytes()); err != nil {
		return err
	}
	return bw.Flush()
}
