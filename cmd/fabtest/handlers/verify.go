package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/fabriclab/fabtest/internal/config"
	"github.com/fabriclab/fabtest/internal/probe"
)

// Verify checks the target's NVMe-oF configuration without mutating
// remote state. Returns a probe.Mismatch when it does not match.
func Verify(ctx context.Context, configPath string) error {
	s, err := newSession(configPath, "verify")
	if err != nil {
		return err
	}

	prober := probe.New(s.exec, s.cfg, s.timeouts.Command)
	if err := prober.VerifyAll(ctx); err != nil {
		return err
	}

	fmt.Printf("Configuration verified: %s at %s:%s, %d namespace(s)\n",
		s.cfg.SubsystemNQN, s.cfg.DataIP, s.cfg.ServicePort, s.cfg.NamespaceCount)

	// Recent nvmet kernel messages help spot trouble a clean configfs
	// tree would hide. Best effort only.
	res, err := s.exec.Execute(ctx, config.RoleTarget, "dmesg | grep -i nvmet | tail -n 20", s.timeouts.LogCollect)
	if err == nil && res.OK() && strings.TrimSpace(res.Stdout) != "" {
		fmt.Println()
		fmt.Println("Recent nvmet kernel messages:")
		fmt.Print(res.Stdout)
	}
	return nil
}
