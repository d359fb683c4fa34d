package environment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ptyhost/internal/providers/process"
	"github.com/GriffinCanCode/ptyhost/internal/shared/utils"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// Kind names an environment type as the UI shows it.
type Kind string

const (
	KindVenv   Kind = "venv"
	KindConda  Kind = "conda"
	KindPoetry Kind = "poetry"
	KindPipenv Kind = "pipenv"
)

// conventionalDirs are checked, in order, for a local virtual environment.
var conventionalDirs = []string{"venv", ".venv", "env", ".env", "virtualenv"}

// skipDirs are never descended into while walking a workspace.
var skipDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"node_modules":  true,
	"vendor":        true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".tox":          true,
	"site-packages": true,
}

// projectMarkers identify a directory as a Python project root.
var projectMarkers = map[string]bool{
	poetryManifest:     true,
	pipenvManifest:     true,
	condaManifest:      true,
	condaManifestAlt:   true,
	"requirements.txt": true,
	"setup.py":         true,
	"setup.cfg":        true,
}

// Environment is one interpreter environment found for a project.
type Environment struct {
	Path        string `json:"path"`
	Kind        Kind   `json:"type"`
	Name        string `json:"name"`
	Interpreter string `json:"interpreter,omitempty"`
	Project     string `json:"project,omitempty"`
}

// CommandRunner runs an environment-manager tool to completion.
// *process.Runner satisfies it.
type CommandRunner interface {
	RunSync(ctx context.Context, req process.SyncRequest) (string, error)
}

// Config controls detection.
type Config struct {
	// UseTools enables asking conda, poetry and pipenv where their
	// environments live when a project manifest names them.
	UseTools bool
	// ToolTimeout bounds each tool invocation.
	ToolTimeout time.Duration
	// ToolCooldown is how long a tool that keeps failing is left alone.
	ToolCooldown time.Duration
	// WorkspaceDepth limits how deep DetectWorkspace looks for projects.
	WorkspaceDepth int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		UseTools:       true,
		ToolTimeout:    10 * time.Second,
		ToolCooldown:   time.Minute,
		WorkspaceDepth: 3,
	}
}

// Detector discovers interpreter environments. It never modifies the
// filesystem and holds no per-project state.
type Detector struct {
	cfg      Config
	runner   CommandRunner
	tools    *resilience.Group
	lookPath func(string) (string, error)
	logger   *zap.Logger
}

// NewDetector creates a detector. runner may be nil, which disables tool
// invocation.
func NewDetector(cfg Config, runner CommandRunner, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaults.ToolTimeout
	}
	if cfg.ToolCooldown <= 0 {
		cfg.ToolCooldown = defaults.ToolCooldown
	}
	if cfg.WorkspaceDepth <= 0 {
		cfg.WorkspaceDepth = defaults.WorkspaceDepth
	}
	return &Detector{
		cfg:    cfg,
		runner: runner,
		tools: resilience.NewGroup(resilience.Settings{
			Timeout: cfg.ToolCooldown,
			OnStateChange: func(name string, from, to resilience.State) {
				logger.Info("Environment tool breaker changed state",
					zap.String("command", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		}),
		lookPath: exec.LookPath,
		logger:   logger,
	}
}

// Detect returns the environments associated with projectPath, ordered by
// path.
func (d *Detector) Detect(ctx context.Context, projectPath string) ([]Environment, error) {
	root, err := d.projectRoot(projectPath)
	if err != nil {
		return nil, err
	}

	found := newEnvSet()
	d.detectLocal(root, found)
	d.detectManaged(ctx, root, found)
	return found.sorted(), nil
}

// DetectWorkspace finds Python projects under root, up to depth levels deep,
// and detects the environments of each. depth <= 0 uses the configured
// default.
func (d *Detector) DetectWorkspace(ctx context.Context, root string, depth int) ([]Environment, error) {
	base, err := d.projectRoot(root)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = d.cfg.WorkspaceDepth
	}

	projects, err := d.findProjects(ctx, base, depth)
	if err != nil {
		return nil, err
	}

	found := newEnvSet()
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		local := newEnvSet()
		d.detectLocal(project, local)
		d.detectManaged(ctx, project, local)

		rel, err := filepath.Rel(base, project)
		if err != nil {
			rel = project
		}
		for _, env := range local.sorted() {
			env.Project = filepath.ToSlash(rel)
			found.add(env)
		}
	}
	return found.sorted(), nil
}

func (d *Detector) projectRoot(path string) (string, error) {
	if err := utils.ValidatePath(path, "path", true); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: project path: %v", utils.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: project path %s is not a directory", utils.ErrInvalidInput, abs)
	}
	return abs, nil
}

// detectLocal finds virtual environments inside the project directory:
// conventional names first, then any child holding a pyvenv.cfg.
func (d *Detector) detectLocal(root string, found *envSet) {
	for _, name := range conventionalDirs {
		dir := filepath.Join(root, name)
		if interp := interpreterIn(dir); interp != "" {
			found.add(Environment{Path: dir, Kind: KindVenv, Name: name, Interpreter: interp})
		}
	}

	matches, err := doublestar.Glob(os.DirFS(root), "*/"+venvMarker)
	if err != nil {
		d.logger.Debug("pyvenv.cfg glob failed", zap.String("path", root), zap.Error(err))
		return
	}
	for _, m := range matches {
		name := filepath.Dir(filepath.FromSlash(m))
		dir := filepath.Join(root, name)
		found.add(Environment{Path: dir, Kind: KindVenv, Name: name, Interpreter: interpreterIn(dir)})
	}
}

// detectManaged asks environment managers about the project when its
// manifest names them. Every failure is skipped.
func (d *Detector) detectManaged(ctx context.Context, root string, found *envSet) {
	for _, manifest := range []string{condaManifest, condaManifestAlt} {
		path := filepath.Join(root, manifest)
		if !fileExists(path) {
			continue
		}
		if env, ok := d.detectConda(ctx, path); ok {
			found.add(env)
		}
		break
	}

	if path := filepath.Join(root, poetryManifest); fileExists(path) {
		doc, err := readPyproject(path)
		if err != nil {
			d.logger.Debug("Skipping pyproject.toml", zap.Error(err))
		} else if doc.usesPoetry() {
			if dir := d.toolPath(ctx, root, "poetry", "env", "info", "--path"); dir != "" {
				found.add(Environment{Path: dir, Kind: KindPoetry, Name: filepath.Base(dir), Interpreter: interpreterIn(dir)})
			}
		}
	}

	if fileExists(filepath.Join(root, pipenvManifest)) {
		if dir := d.toolPath(ctx, root, "pipenv", "--venv"); dir != "" {
			found.add(Environment{Path: dir, Kind: KindPipenv, Name: filepath.Base(dir), Interpreter: interpreterIn(dir)})
		}
	}
}

func (d *Detector) detectConda(ctx context.Context, manifest string) (Environment, bool) {
	def, err := readCondaFile(manifest)
	if err != nil {
		d.logger.Debug("Skipping conda manifest", zap.Error(err))
		return Environment{}, false
	}

	if def.Prefix != "" && dirExists(def.Prefix) {
		return condaEnv(def.Prefix, def.Name), true
	}
	if def.Name == "" {
		return Environment{}, false
	}

	out, ok := d.runTool(ctx, filepath.Dir(manifest), "conda", "env", "list", "--json")
	if !ok {
		return Environment{}, false
	}
	envs, err := parseCondaEnvList(out)
	if err != nil {
		d.logger.Debug("Skipping conda output", zap.Error(err))
		return Environment{}, false
	}
	for _, dir := range envs {
		if filepath.Base(dir) == def.Name {
			return condaEnv(dir, def.Name), true
		}
	}
	return Environment{}, false
}

func condaEnv(dir, name string) Environment {
	if name == "" {
		name = filepath.Base(dir)
	}
	interp := ""
	candidates := []string{filepath.Join(dir, "bin", "python")}
	if runtime.GOOS == "windows" {
		candidates = []string{filepath.Join(dir, "python.exe")}
	}
	for _, c := range candidates {
		if fileExists(c) {
			interp = c
			break
		}
	}
	return Environment{Path: dir, Kind: KindConda, Name: name, Interpreter: interp}
}

// toolPath runs a tool that prints an environment directory and returns it
// if it exists.
func (d *Detector) toolPath(ctx context.Context, cwd, tool string, args ...string) string {
	out, ok := d.runTool(ctx, cwd, tool, args...)
	if !ok {
		return ""
	}
	dir := lastLine(out)
	if dir == "" || !dirExists(dir) {
		return ""
	}
	return dir
}

func (d *Detector) runTool(ctx context.Context, cwd, tool string, args ...string) (string, bool) {
	if !d.cfg.UseTools || d.runner == nil {
		return "", false
	}
	if _, err := d.lookPath(tool); err != nil {
		return "", false
	}

	var (
		out   string
		found bool
	)
	err := d.tools.Do(ctx, tool, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.cfg.ToolTimeout)
		defer cancel()

		var err error
		out, err = d.runner.RunSync(ctx, process.SyncRequest{
			Command: tool,
			Args:    args,
			Cwd:     cwd,
			Env:     map[string]string{"PIPENV_VERBOSITY": "-1", "NO_COLOR": "1"},
		})
		if answered(err) {
			// The tool ran and said no, as pipenv --venv does for a project
			// without an environment. Only a broken tool trips the breaker.
			return nil
		}
		found = err == nil
		return err
	})
	if !found && err == nil {
		return "", false
	}
	if err != nil {
		d.logger.Debug("Environment tool failed",
			zap.String("command", tool),
			zap.Strings("args", args),
			zap.Error(err))
		return "", false
	}
	return out, true
}

// answered reports whether err is a tool's regular non-zero exit rather than
// a spawn failure, a timeout or a signal.
func answered(err error) bool {
	var cmdErr *process.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Err == nil && cmdErr.ExitCode != nil
}

// findProjects walks base and returns every directory, base included, that
// looks like a Python project.
func (d *Detector) findProjects(ctx context.Context, base string, maxDepth int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	projects := map[string]bool{base: true}

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, base, func(path string, entry fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil
		}

		rel, _ := filepath.Rel(base, path)
		depth := len(strings.Split(rel, string(os.PathSeparator)))
		if entry.IsDir() {
			if path == base {
				return nil
			}
			if depth > maxDepth || skipDirs[entry.Name()] || isEnvDir(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if projectMarkers[entry.Name()] {
			mu.Lock()
			projects[filepath.Dir(path)] = true
			mu.Unlock()
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipDir) {
		return nil, fmt.Errorf("walk %s: %w", base, err)
	}

	out := make([]string, 0, len(projects))
	for p := range projects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// isEnvDir reports whether dir is itself a virtual environment.
func isEnvDir(dir string) bool {
	return fileExists(filepath.Join(dir, venvMarker)) || interpreterIn(dir) != ""
}

// interpreterIn returns the python executable inside a virtual environment
// directory, or "".
func interpreterIn(dir string) string {
	candidates := []string{
		filepath.Join(dir, "bin", "python"),
		filepath.Join(dir, "bin", "python3"),
	}
	if runtime.GOOS == "windows" {
		candidates = []string{
			filepath.Join(dir, "Scripts", "python.exe"),
			filepath.Join(dir, "Scripts", "python3.exe"),
		}
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// envSet de-duplicates environments by cleaned path; the first kind seen for
// a path wins.
type envSet struct {
	byPath map[string]Environment
}

func newEnvSet() *envSet {
	return &envSet{byPath: make(map[string]Environment)}
}

func (s *envSet) add(env Environment) {
	key := filepath.Clean(env.Path)
	if _, ok := s.byPath[key]; ok {
		return
	}
	env.Path = key
	s.byPath[key] = env
}

func (s *envSet) sorted() []Environment {
	out := make([]Environment, 0, len(s.byPath))
	for _, env := range s.byPath {
		out = append(out, env)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
