// ngaot compiles an Angular project ahead of time, incrementally.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/joho/godotenv"

	"github.com/phobologic/ngaot/internal/compiler"
	"github.com/phobologic/ngaot/internal/config"
	"github.com/phobologic/ngaot/internal/discover"
	"github.com/phobologic/ngaot/internal/generator"
	"github.com/phobologic/ngaot/internal/host"
	"github.com/phobologic/ngaot/internal/loader"
	"github.com/phobologic/ngaot/internal/model"
	"github.com/phobologic/ngaot/internal/resource"
	"github.com/phobologic/ngaot/internal/toon"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:], os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// session bundles everything one project build needs.
type session struct {
	root      string
	project   *config.Project
	host      *host.OS
	compiler  *compiler.Compiler
	loader    *loader.Loader
	resources *resource.Loader
	log       logr.Logger

	outDir  string
	workers int
	report  bool
	pass    int
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ngaot", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath  string
		watch       bool
		report      bool
		outDir      string
		workers     int
		verbosity   int
		showVersion bool
	)

	fs.StringVar(&configPath, "c", "tsconfig.json", "tsconfig path, relative to the project dir")
	fs.StringVar(&configPath, "config", "tsconfig.json", "tsconfig path, relative to the project dir")
	fs.BoolVar(&watch, "w", false, "read changed paths from stdin, one pass per line")
	fs.BoolVar(&watch, "watch", false, "read changed paths from stdin, one pass per line")
	fs.BoolVar(&report, "report", false, "print a build report after every pass")
	fs.StringVar(&outDir, "out", "", "write transpiled units to this directory")
	fs.IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "units transpiled in parallel")
	fs.IntVar(&verbosity, "v", 0, "log verbosity")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "ngaot %s\n", version)
		return nil
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	stderr = &syncWriter{w: stderr}
	log := funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(stderr, "%s: %s\n", prefix, args)
			return
		}
		_, _ = fmt.Fprintln(stderr, args)
	}, funcr.Options{Verbosity: verbosity})

	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(root, configPath)
	}
	s, err := newSession(root, configPath, log)
	if err != nil {
		return err
	}
	s.outDir = outDir
	s.workers = workers
	s.report = report

	ctx := context.Background()
	firstErr := s.runPass(ctx, nil, stdout, stderr)
	if !watch {
		return firstErr
	}

	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		changed := changedPaths(root, scanner.Text())
		if len(changed) == 0 {
			continue
		}
		// Pass errors are reported and the next batch retries.
		_ = s.runPass(ctx, changed, stdout, stderr)
	}
	return scanner.Err()
}

func newSession(root, configPath string, log logr.Logger) (*session, error) {
	project, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	files := project.Files
	if len(files) == 0 {
		files, err = discover.Units(project.BasePath, project.GenDir)
		if err != nil {
			return nil, fmt.Errorf("discovering units: %w", err)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no units found under %s", project.BasePath)
	}

	h := host.NewOS(files, project.BaseURL)
	resources := resource.NewLoader(resource.RawEvaluator{Files: h}, log.WithName("resource"))
	gen := generator.NewStructural(h, generator.Options{
		Command: project.Generator,
		Dir:     project.BasePath,
		Log:     log.WithName("generator"),
	})
	c, err := compiler.New(project.CompilerConfig(), h, gen, compiler.Options{
		Log:             log.WithName("compiler"),
		ResourceRequest: resources.IsResource,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		root:      root,
		project:   project,
		host:      h,
		compiler:  c,
		loader:    loader.New(c, project.TransformOptions(), log.WithName("loader")),
		resources: resources,
		log:       log,
	}, nil
}

// runPass compiles changed, then emits and reports. It returns the pass
// errors joined.
func (s *session) runPass(ctx context.Context, changed []string, stdout, stderr io.Writer) error {
	s.pass++
	res := s.compiler.Compile(ctx, changed)
	for _, err := range res.Errors {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	}

	errs := res.Errors
	if len(errs) == 0 && s.outDir != "" {
		units := append(s.compiler.Files(), res.Written...)
		errs = append(errs, s.emitConcurrent(ctx, units, stderr)...)
	}

	if s.report {
		_, _ = fmt.Fprintln(stdout, toon.Encode(s.buildReport(res.Written, errs)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("pass %d failed: %w", s.pass, errors.Join(errs...))
	}
	return nil
}

func (s *session) buildReport(written []string, errs []error) *model.BuildReport {
	r := &model.BuildReport{
		Project: filepath.Base(s.project.BasePath),
		GenDir:  s.rel(s.project.GenDir),
		Pass:    s.pass,
	}
	for _, w := range written {
		r.Artifacts = append(r.Artifacts, s.rel(w))
	}
	for _, err := range errs {
		r.Errors = append(r.Errors, err.Error())
	}
	for _, e := range s.compiler.Tracker().Edges() {
		r.Edges = append(r.Edges, model.ReportEdge{From: s.rel(e.From), To: s.rel(e.To), Kind: string(e.Kind)})
	}
	return r
}

func (s *session) rel(path string) string {
	rel, err := filepath.Rel(s.project.BasePath, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// emitConcurrent runs every unit through the loader and writes the result
// under outDir, mirroring the layout below the base path.
func (s *session) emitConcurrent(ctx context.Context, units []string, stderr io.Writer) []error {
	numWorkers := s.workers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(units) {
		numWorkers = len(units)
	}

	work := make(chan string, len(units))
	errs := make(chan error, len(units))

	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				if err := s.emit(ctx, path); err != nil {
					errs <- err
					continue
				}
				s.log.V(1).Info("emitted", "unit", s.rel(path))
			}
		}()
	}

	for _, u := range units {
		work <- u
	}
	close(work)

	go func() {
		wg.Wait()
		close(errs)
	}()

	var collected []error
	for err := range errs {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		collected = append(collected, err)
	}
	return collected
}

func (s *session) emit(ctx context.Context, path string) error {
	source, err := s.host.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := s.loader.Load(ctx, path, source)
	if err != nil {
		return err
	}
	for _, dep := range out.Dependencies {
		if _, err := s.resources.Load(ctx, dep); err != nil {
			return fmt.Errorf("%s: %w", s.rel(path), err)
		}
	}

	target := filepath.Join(s.outDir, strings.TrimSuffix(s.rel(path), filepath.Ext(path))+".js")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	code := out.Code
	if out.Map != nil {
		data, err := out.Map.Marshal()
		if err != nil {
			return fmt.Errorf("encoding source map for %s: %w", s.rel(path), err)
		}
		if err := os.WriteFile(target+".map", data, 0o644); err != nil {
			return err
		}
		code += "//# sourceMappingURL=" + filepath.Base(target) + ".map\n"
	}
	return os.WriteFile(target, []byte(code), 0o644)
}

// syncWriter serializes writes from the logger and the emit workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// changedPaths splits one watch line into absolute paths.
func changedPaths(root, line string) []string {
	var paths []string
	for _, f := range strings.Fields(line) {
		if !filepath.IsAbs(f) {
			f = filepath.Join(root, f)
		}
		paths = append(paths, filepath.Clean(f))
	}
	return paths
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-c": true, "--c": true,
	"-config": true, "--config": true,
	"-out": true, "--out": true,
	"-workers": true, "--workers": true,
	"-v": true, "--v": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
