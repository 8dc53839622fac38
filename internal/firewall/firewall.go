// Package firewall installs per-executable inbound and outbound block rules.
package firewall

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"sort"
	"strings"
	"sync"
)

// ErrUnsupported is returned on platforms without a rule store.
var ErrUnsupported = errors.New("firewall rules not supported on this platform")

// Controller manages named block rules bound to an executable path.
type Controller interface {
	// Block installs inbound and outbound block rules for program under name,
	// replacing any existing rule of that name.
	Block(ctx context.Context, name, program string) error
	Remove(ctx context.Context, name string) error
}

// RuleName derives the rule name for exe: <prefix>_Block_<basename>_<hash>.
// The hash covers the whole path, so executables sharing a basename in
// different directories get distinct rules.
func RuleName(prefix, exe string) string {
	slashed := path.Clean(strings.ReplaceAll(exe, `\`, "/"))
	sum := sha256.Sum256([]byte(strings.ToLower(slashed)))
	return fmt.Sprintf("%s_Block_%s_%s", prefix, path.Base(slashed), hex.EncodeToString(sum[:4]))
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Netsh drives the Windows Defender Firewall through netsh advfirewall.
type Netsh struct {
	run Runner
}

// NewNetsh returns a netsh controller using run, or os/exec when run is nil.
func NewNetsh(run Runner) *Netsh {
	if run == nil {
		run = execRunner
	}
	return &Netsh{run: run}
}

func (n *Netsh) Block(ctx context.Context, name, program string) error {
	// delete fails when the rule does not exist yet
	_ = n.Remove(ctx, name)
	for _, dir := range []string{"out", "in"} {
		out, err := n.run(ctx, "netsh", "advfirewall", "firewall", "add", "rule",
			"name="+name, "dir="+dir, "action=block", "program="+program, "enable=yes")
		if err != nil {
			return fmt.Errorf("failed to add %s rule %s: %w: %s", dir, name, err, out)
		}
	}
	return nil
}

func (n *Netsh) Remove(ctx context.Context, name string) error {
	out, err := n.run(ctx, "netsh", "advfirewall", "firewall", "delete", "rule", "name="+name)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w: %s", name, err, out)
	}
	return nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	hideWindow(cmd)
	return cmd.CombinedOutput()
}

// Unsupported rejects every rule change.
type Unsupported struct{}

func (Unsupported) Block(context.Context, string, string) error { return ErrUnsupported }
func (Unsupported) Remove(context.Context, string) error        { return ErrUnsupported }

// Rule is one installed block rule.
type Rule struct {
	Name       string
	Program    string
	Directions []string
}

// Memory is an in-memory rule store.
type Memory struct {
	mu    sync.Mutex
	rules map[string]Rule
}

// NewMemory returns an empty rule store.
func NewMemory() *Memory {
	return &Memory{rules: make(map[string]Rule)}
}

func (m *Memory) Block(ctx context.Context, name, program string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[name] = Rule{Name: name, Program: program, Directions: []string{"out", "in"}}
	return nil
}

func (m *Memory) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, name)
	return nil
}

// Rules returns the installed rules sorted by name.
func (m *Memory) Rules() []Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	rules := make([]Rule, 0, len(m.rules))
	for _, r := range m.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}
