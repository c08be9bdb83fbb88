package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"
)

// WizardResult holds the user's choices from the init wizard.
type WizardResult struct {
	Scenario         string
	TargetAddress    string
	TargetUser       string
	InitiatorAddress string
	InitiatorUser    string
	KeyFile          string
	DataIP           string
	ServicePort      string
	SubsystemNQN     string
	BackendDevice    string
	NamespaceCount   int
}

// RunWizard runs the interactive configuration wizard.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	result := &WizardResult{
		// Defaults
		Scenario:       "full-run",
		TargetUser:     "root",
		InitiatorUser:  "root",
		ServicePort:    DefaultServicePort,
		SubsystemNQN:   DefaultSubsystemNQN,
		BackendDevice:  DefaultBackendDevice,
		NamespaceCount: DefaultNamespaceCount,
	}

	form := huh.NewForm(
		// Hosts
		huh.NewGroup(
			huh.NewInput().
				Title("Target address").
				Description("Management address of the NVMe-oF target host").
				Placeholder("192.168.1.10").
				Value(&result.TargetAddress).
				Validate(validateAddress),

			huh.NewInput().
				Title("Target user").
				Value(&result.TargetUser).
				Validate(validateRequired("user")),

			huh.NewInput().
				Title("Initiator address").
				Description("Management address of the initiator host").
				Placeholder("192.168.1.11").
				Value(&result.InitiatorAddress).
				Validate(validateAddress),

			huh.NewInput().
				Title("Initiator user").
				Value(&result.InitiatorUser).
				Validate(validateRequired("user")),

			huh.NewInput().
				Title("SSH key file").
				Description("Private key used for both hosts").
				Placeholder("~/.ssh/id_ed25519").
				Value(&result.KeyFile),
		),

		// Fabric
		huh.NewGroup(
			huh.NewInput().
				Title("Data IP").
				Description("Fabric-facing address the target will listen on").
				Placeholder("192.168.1.49").
				Value(&result.DataIP).
				Validate(validateAddress),

			huh.NewInput().
				Title("Service port").
				Value(&result.ServicePort).
				Validate(validatePort),

			huh.NewInput().
				Title("Subsystem NQN").
				Value(&result.SubsystemNQN).
				Validate(validateNQN),
		),

		// Export
		huh.NewGroup(
			huh.NewInput().
				Title("Backend device").
				Description("Block device on the target to export").
				Value(&result.BackendDevice).
				Validate(validateRequired("backend device")),

			huh.NewSelect[int]().
				Title("Namespace count").
				Options(
					huh.NewOption("1 namespace", 1),
					huh.NewOption("2 namespaces", 2),
					huh.NewOption("3 namespaces", 3),
					huh.NewOption("4 namespaces", 4),
				).
				Value(&result.NamespaceCount),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("wizard canceled: %w", err)
	}

	return result, nil
}

// ToConfig converts the wizard result into a defaulted Config.
func (r *WizardResult) ToConfig() *Config {
	cfg := &Config{
		Scenario:       r.Scenario,
		Target:         Host{Address: r.TargetAddress, User: r.TargetUser, KeyFile: r.KeyFile},
		Initiator:      Host{Address: r.InitiatorAddress, User: r.InitiatorUser, KeyFile: r.KeyFile},
		DataIP:         r.DataIP,
		ServicePort:    r.ServicePort,
		SubsystemNQN:   r.SubsystemNQN,
		BackendDevice:  r.BackendDevice,
		NamespaceCount: r.NamespaceCount,
	}
	applyDefaults(cfg)
	return cfg
}

// WriteYAML writes the config to a YAML file, refusing to overwrite.
func WriteYAML(cfg *Config, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateAddress(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("address is required")
	}
	if net.ParseIP(s) == nil && strings.ContainsAny(s, " /") {
		return fmt.Errorf("invalid address")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

func validateNQN(s string) error {
	if !strings.HasPrefix(s, "nqn.") {
		return fmt.Errorf("subsystem NQN must start with nqn.")
	}
	return nil
}
