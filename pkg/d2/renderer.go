package d2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	d2errors "github.com/matzehuels/d2site/pkg/errors"
)

// Renderer converts diagram source into an SVG document.
type Renderer interface {
	Render(ctx context.Context, source []byte) ([]byte, error)
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(ctx context.Context, source []byte) ([]byte, error)

// Render calls f.
func (f RenderFunc) Render(ctx context.Context, source []byte) ([]byte, error) {
	return f(ctx, source)
}

// Defaults for the d2 command renderer.
const (
	DefaultBinary     = "d2"
	DefaultTheme      = 0 // Neutral Default
	DefaultPad        = 0
	DefaultTimeout    = 30 * time.Second
	DefaultScratchDir = ".d2-temp"
)

// CommandOptions configures a Command renderer. Zero values select defaults.
type CommandOptions struct {
	Binary     string        // executable name or path (default "d2")
	Theme      int           // --theme value
	Pad        int           // --pad value
	ScratchDir string        // temp file directory (default <cwd>/.d2-temp)
	ExtraPath  string        // directory prepended to PATH (default $HOME/.local/bin)
	Timeout    time.Duration // per-render deadline (default 30s, negative disables)
	Args       []string      // extra flags appended after --pad
	Logger     *log.Logger
}

// Command renders diagrams by running the d2 CLI:
//
//	d2 <scratch>/temp-<hash>-<id>.d2 <scratch>/temp-<hash>-<id>.svg --theme=N --pad=N
//
// Every render uses its own pair of temp files and removes both before
// returning, on success and on failure. A Command is safe for concurrent use.
type Command struct {
	binary     string
	theme      int
	pad        int
	scratchDir string
	extraPath  string
	timeout    time.Duration
	args       []string
	logger     *log.Logger
}

// NewCommand creates a d2 command renderer.
func NewCommand(opts CommandOptions) *Command {
	c := &Command{
		binary:     opts.Binary,
		theme:      opts.Theme,
		pad:        opts.Pad,
		scratchDir: opts.ScratchDir,
		extraPath:  opts.ExtraPath,
		timeout:    opts.Timeout,
		args:       append([]string(nil), opts.Args...),
		logger:     opts.Logger,
	}
	if c.binary == "" {
		c.binary = DefaultBinary
	}
	if c.scratchDir == "" {
		c.scratchDir = defaultScratchDir()
	}
	if c.extraPath == "" {
		c.extraPath = defaultExtraPath()
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

func defaultScratchDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return DefaultScratchDir
	}
	return filepath.Join(wd, DefaultScratchDir)
}

func defaultExtraPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "bin")
}

// ScratchDir returns the directory temp files are written to.
func (c *Command) ScratchDir() string { return c.scratchDir }

// Theme returns the --theme value.
func (c *Command) Theme() int { return c.theme }

// Pad returns the --pad value.
func (c *Command) Pad() int { return c.pad }

// Render writes source to a temp file, runs d2 on it and returns the SVG.
func (c *Command) Render(ctx context.Context, source []byte) ([]byte, error) {
	if err := os.MkdirAll(c.scratchDir, 0o755); err != nil {
		return nil, d2errors.Wrap(d2errors.ErrCodeScratchDir, err, "create scratch dir %s", c.scratchDir)
	}

	base := filepath.Join(c.scratchDir, fmt.Sprintf("temp-%s-%s", ContentHash(source), uuid.NewString()))
	in, out := base+".d2", base+".svg"
	defer c.cleanup(in, out)

	if err := os.WriteFile(in, source, 0o644); err != nil {
		return nil, d2errors.Wrap(d2errors.ErrCodeScratchDir, err, "write %s", filepath.Base(in))
	}

	bin, err := c.lookPath()
	if err != nil {
		return nil, err
	}

	parent := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{in, out, "--theme=" + strconv.Itoa(c.theme), "--pad=" + strconv.Itoa(c.pad)}
	args = append(args, c.args...)

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), "PATH="+c.searchPath())
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, c.runError(parent, ctx, err, output.String())
	}
	c.logger.Debug("rendered diagram", "input", filepath.Base(in), "duration", time.Since(start).Round(time.Millisecond))

	svg, err := os.ReadFile(out)
	if err != nil {
		return nil, d2errors.Wrap(d2errors.ErrCodeMissingOutput, err, "%s exited successfully but produced no output", c.binary)
	}
	return svg, nil
}

// runError maps a failed d2 invocation onto the rendering error codes.
// parent is the caller's context and ctx the one bounded by the render
// timeout, so a caller deadline is not reported as the render timeout.
func (c *Command) runError(parent, ctx context.Context, err error, output string) error {
	switch {
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return d2errors.Wrap(d2errors.ErrCodeTimeout, parent.Err(), "%s timed out: caller deadline exceeded", c.binary)
	case parent.Err() != nil:
		return d2errors.Wrap(d2errors.ErrCodeInternal, parent.Err(), "render canceled")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return d2errors.Wrap(d2errors.ErrCodeTimeout, ctx.Err(), "%s timed out after %s", c.binary, c.timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(output)
		if msg == "" {
			return d2errors.New(d2errors.ErrCodeRenderFailed, "%s exited with status %d", c.binary, exitErr.ExitCode())
		}
		return d2errors.Wrap(d2errors.ErrCodeRenderFailed, errors.New(msg), "%s exited with status %d", c.binary, exitErr.ExitCode())
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, exec.ErrNotFound) {
		return d2errors.Wrap(d2errors.ErrCodeRendererNotFound, err, "cannot execute %s", c.binary)
	}
	return d2errors.Wrap(d2errors.ErrCodeRenderFailed, err, "run %s", c.binary)
}

// Version runs "d2 --version" and returns its trimmed output.
// The build uses it to key cached artifacts and the doctor command to report
// which renderer will be used.
func (c *Command) Version(ctx context.Context) (string, error) {
	bin, err := c.lookPath()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, "--version")
	cmd.Env = append(os.Environ(), "PATH="+c.searchPath())
	out, err := cmd.Output()
	if err != nil {
		return "", d2errors.Wrap(d2errors.ErrCodeRendererNotFound, err, "%s --version", c.binary)
	}
	return strings.TrimSpace(string(out)), nil
}

// LookPath returns the executable the renderer will run.
func (c *Command) LookPath() (string, error) {
	return c.lookPath()
}

// searchPath returns PATH with the extra install directory prepended.
func (c *Command) searchPath() string {
	path := os.Getenv("PATH")
	if c.extraPath == "" {
		return path
	}
	if path == "" {
		return c.extraPath
	}
	return c.extraPath + string(os.PathListSeparator) + path
}

// lookPath resolves the binary against the augmented search path. The
// process environment is left untouched, so exec.LookPath cannot be used.
func (c *Command) lookPath() (string, error) {
	if strings.ContainsRune(c.binary, filepath.Separator) {
		if err := checkExecutable(c.binary); err != nil {
			return "", d2errors.Wrap(d2errors.ErrCodeRendererNotFound, err, "cannot execute %s", c.binary)
		}
		return c.binary, nil
	}
	for _, dir := range filepath.SplitList(c.searchPath()) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, c.binary)
		if checkExecutable(candidate) == nil {
			return candidate, nil
		}
	}
	return "", d2errors.Wrap(d2errors.ErrCodeRendererNotFound, exec.ErrNotFound, "%s not found in PATH or %s", c.binary, c.extraPath)
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		return fs.ErrPermission
	}
	return nil
}

// cleanup removes temp files. Failures are logged at debug level and never
// replace the render result.
func (c *Command) cleanup(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("remove temp file", "path", p, "err", err)
		}
	}
}

var _ Renderer = (*Command)(nil)
