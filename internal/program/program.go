// Package program inspects the external simulation executable a
// campaign binds to: validity, declared parameters, and a version
// fingerprint of its source tree.
package program

import (
	"bufio"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotExecutable = errors.New("program is not an executable file")
	ErrProbeFailed   = errors.New("parameter probe failed")
)

// HelpFlag is passed to the program to make it print its declared
// parameters, one "--name: description" line per parameter.
const HelpFlag = "--PrintHelp"

const probeTimeout = 30 * time.Second

// paramLine matches a declared option in the program's help output,
// e.g. "    --useRts: Enable RTS/CTS [false]".
var paramLine = regexp.MustCompile(`^\s*--([A-Za-z][A-Za-z0-9_]*)\s*[:=]`)

// IsValid reports whether path names an executable regular file.
func IsValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}

// Parameters probes the program for its declared parameter names by
// running it with HelpFlag and parsing the option lines it prints.
func Parameters(ctx context.Context, path string) (map[string]bool, error) {
	if !IsValid(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotExecutable, path)
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, path, HelpFlag).Output() // #nosec G204 -- path validated as the campaign's bound executable
	if err != nil {
		// Many programs exit nonzero after printing help; only fail
		// when there is no output to parse.
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
		}
	}

	names := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		if m := paramLine.FindStringSubmatch(scanner.Text()); m != nil {
			names[m[1]] = true
		}
	}

	log.Debug().Str("program", path).Int("parameters", len(names)).Msg("probed program parameters")
	return names, nil
}

// Fingerprint identifies the version of the program's source tree.
// When the executable lives inside a git checkout the HEAD commit is
// used; otherwise the binary's sha256 stands in.
func Fingerprint(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving program path: %w", err)
	}

	if commit, err := gitHead(filepath.Dir(abs)); err == nil {
		return commit, nil
	}

	return fileDigest(abs)
}

func gitHead(dir string) (string, error) {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output() // #nosec G204 -- dir derived from the validated program path
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	commit := strings.TrimSpace(string(out))
	if commit == "" {
		return "", errors.New("git rev-parse returned empty output")
	}
	return commit, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("opening program: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing program: %w", err)
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}
