package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"syscall"
	"time"
)

// runShell executes command through a non-interactive POSIX/Windows shell,
// capturing combined stdout+stderr, and enforces timeout by killing the
// whole process group/tree on expiry — the same two-stage SIGTERM-then-
// SIGKILL (POSIX) / taskkill /F /T (Windows) semantics the driver's shell
// tool uses.
func runShell(command, cwd string, timeout time.Duration) (exitCode int, output string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	cmd.Dir = cwd

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Start()
	if err != nil {
		return -1, err.Error()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		output = buf.String()
		if err == nil {
			return 0, output
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), output
		}
		return -1, output
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		output = buf.String() + "\n[KILLED AFTER TIMEOUT]"
		return -1, output
	}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if runtime.GOOS == "windows" {
		kill := exec.Command("taskkill", "/F", "/T", "/PID", fmt.Sprintf("%d", cmd.Process.Pid))
		_ = kill.Run()
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	time.Sleep(500 * time.Millisecond)
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}

// ShellTool implements shell: runs a framed, timeout-bounded command in the
// repo root, transparently wrapping it in `docker exec` when a Docker
// target is configured.
func ShellTool(env *Env) Tool {
	return Tool{
		Name:        "shell",
		Description: "Run a non-interactive shell command in the repository root.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{"type": "string"},
				"timeout": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"command"},
		},
		Invoke: func(call ToolCall) ToolResult {
			command := argString(call, "command", "")
			timeoutSec := resolveTimeout(call, env.Config)
			effective := command
			if env.Docker != nil && env.Docker.ContainerID != "" {
				effective = fmt.Sprintf("docker exec -w %s %s sh -lc %q", env.Docker.Workdir, env.Docker.ContainerID, command)
			}
			code, out := runShell(effective, env.RepoDir, time.Duration(timeoutSec)*time.Second)
			result := fmt.Sprintf("$ %s\n[exit %d]\n%s", command, code, out)
			if env.Notes != nil {
				env.Notes.AutoNoteShellExit(command, result)
			}
			return ToolResult{Text: result}
		},
	}
}

func resolveTimeout(call ToolCall, cfg ShellConfig) int {
	def := cfg.DefaultTimeoutSeconds
	if def <= 0 {
		def = 60
	}
	max := cfg.MaxTimeoutSeconds
	if max <= 0 {
		max = 600
	}
	t := argInt(call, "timeout", def)
	if t < 1 {
		t = 1
	}
	if t > max {
		t = max
	}
	return t
}

// LintTool implements lint: runs either a given command or every discovered
// lint command from analysis, concatenating framed outputs.
func LintTool(env *Env) Tool {
	return Tool{
		Name:        "lint",
		Description: "Run the project's lint command(s).",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"command": map[string]interface{}{"type": "string"}},
		},
		Invoke: func(call ToolCall) ToolResult {
			command := argString(call, "command", "")
			var cmds []string
			if command != "" {
				cmds = []string{command}
			} else if env.Analysis != nil {
				if raw, ok := env.Analysis["lint_commands"].([]interface{}); ok {
					for _, c := range raw {
						if s, ok := c.(string); ok {
							cmds = append(cmds, s)
						}
					}
				}
			}
			if len(cmds) == 0 {
				return ToolResult{Text: "NO_LINT_COMMANDS"}
			}

			timeoutSec := resolveTimeout(ToolCall{}, env.Config)
			var outputs []string
			for _, c := range cmds {
				effective := c
				if env.Docker != nil && env.Docker.ContainerID != "" {
					effective = fmt.Sprintf("docker exec -w %s %s sh -lc %q", env.Docker.Workdir, env.Docker.ContainerID, c)
				}
				code, out := runShell(effective, env.RepoDir, time.Duration(timeoutSec)*time.Second)
				outputs = append(outputs, fmt.Sprintf("$ %s\n[exit %d]\n%s", c, code, out))
			}
			return ToolResult{Text: joinDouble(outputs)}
		},
	}
}

func joinDouble(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n\n"
		}
		out += p
	}
	return out
}
